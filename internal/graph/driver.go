// Package graph provides database abstraction for graph operations.
// High-level stores depend on Driver, not on the neo4j client.
package graph

import (
	"context"

	"github.com/joss/toolgate/internal/config"
)

// Record represents a single result row from a query.
type Record map[string]any

// GraphReader provides read-only graph database operations.
type GraphReader interface {
	// Execute runs a Cypher query and returns results.
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// GraphWriter provides write graph database operations.
type GraphWriter interface {
	// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error

	// ExecuteWriteReturning runs a write query and returns its RETURN rows.
	ExecuteWriteReturning(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// Driver defines the full interface for graph database operations.
// Any graph DB (Memgraph, Neo4j, etc.) must implement this interface.
type Driver interface {
	GraphReader
	GraphWriter

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// DefaultConfig returns configuration from the toolgate environment.
func DefaultConfig() Config {
	env := config.Env()
	return Config{
		URI:      env.Neo4jURI,
		Username: env.Neo4jUser,
		Password: env.Neo4jPassword,
		Database: env.Neo4jDatabase,
	}
}
