// Package config provides centralized configuration management.
// Every toolgate setting is read here once; flags on the CLI override it.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Store backends accepted by TOOLGATE_STORE.
const (
	StoreSQLite = "sqlite"
	StoreGraph  = "graph"
)

// ToolgateEnv holds all toolgate environment variables.
type ToolgateEnv struct {
	// Home is the toolgate home directory (TOOLGATE_HOME, default ~/.toolgate)
	Home string

	// DBPath is the sqlite execution-record database (TOOLGATE_DB)
	DBPath string

	// Store selects the execution-record backend (TOOLGATE_STORE: sqlite|graph)
	Store string

	// SessionID is the agent run session this server records usage for (TOOLGATE_SESSION_ID)
	SessionID int64

	// AgentName is the agent whose run this server records usage for (TOOLGATE_AGENT_NAME)
	AgentName string

	// WorkDir is the directory file and shell tools operate in (TOOLGATE_WORKDIR)
	WorkDir string

	// LogLevel is the minimum structured log level (TOOLGATE_LOG_LEVEL)
	LogLevel string

	// Neo4jURI is the graph database URI (NEO4J_URI)
	Neo4jURI string

	// Neo4jUser is the graph database user (NEO4J_USER)
	Neo4jUser string

	// Neo4jPassword is the graph database password (NEO4J_PASSWORD)
	Neo4jPassword string

	// Neo4jDatabase is the graph database name (NEO4J_DATABASE)
	Neo4jDatabase string
}

var (
	env     *ToolgateEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *ToolgateEnv {
	envOnce.Do(func() {
		home := getEnvDefault("TOOLGATE_HOME", defaultHome())
		wd, _ := os.Getwd()
		env = &ToolgateEnv{
			Home:          home,
			DBPath:        getEnvDefault("TOOLGATE_DB", filepath.Join(home, "data", "executions.db")),
			Store:         getEnvDefault("TOOLGATE_STORE", StoreSQLite),
			SessionID:     getEnvInt("TOOLGATE_SESSION_ID", 0),
			AgentName:     os.Getenv("TOOLGATE_AGENT_NAME"),
			WorkDir:       getEnvDefault("TOOLGATE_WORKDIR", wd),
			LogLevel:      getEnvDefault("TOOLGATE_LOG_LEVEL", "info"),
			Neo4jURI:      getEnvDefault("NEO4J_URI", "bolt://localhost:7687"),
			Neo4jUser:     os.Getenv("NEO4J_USER"),
			Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
			Neo4jDatabase: getEnvDefault("NEO4J_DATABASE", "memgraph"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

// RecordsUsage reports whether a session and agent were configured,
// meaning tool servers should append invoked tools to that run's record.
func (e *ToolgateEnv) RecordsUsage() bool {
	return e.SessionID > 0 && e.AgentName != ""
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".toolgate")
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
