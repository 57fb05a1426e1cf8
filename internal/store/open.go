package store

import (
	"context"
	"fmt"
	"time"

	"github.com/joss/toolgate/internal/config"
	"github.com/joss/toolgate/internal/graph"
)

// Open returns the execution store selected by the environment.
// The graph backend is verified with a short ping before it is returned.
func Open(ctx context.Context, env *config.ToolgateEnv) (ExecutionStore, error) {
	switch env.Store {
	case config.StoreSQLite, "":
		return OpenSQLite(env.DBPath)
	case config.StoreGraph:
		db, err := graph.NewMemgraph(graph.Config{
			URI:      env.Neo4jURI,
			Username: env.Neo4jUser,
			Password: env.Neo4jPassword,
			Database: env.Neo4jDatabase,
		})
		if err != nil {
			return nil, connectionError("open graph", err)
		}
		g := NewGraph(db)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := g.Ping(pingCtx); err != nil {
			g.Close()
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", env.Store, config.StoreSQLite, config.StoreGraph)
	}
}
