package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/config"
	"github.com/joss/toolgate/internal/store"
)

// exitCode lets a command fail without cobra printing usage or the error.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// settings returns a copy of the environment with store flags applied.
func settings(cmd *cobra.Command) config.ToolgateEnv {
	env := *config.Env()
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		env.Store = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		env.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("workdir"); v != "" {
		env.WorkDir = v
	}
	if abs, err := filepath.Abs(env.WorkDir); err == nil {
		env.WorkDir = abs
	}
	return env
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "Execution store: sqlite or graph (default $TOOLGATE_STORE)")
	cmd.Flags().String("db", "", "SQLite database path (default $TOOLGATE_DB)")
}

func openStore(ctx context.Context, env *config.ToolgateEnv) (store.ExecutionStore, error) {
	s, err := store.Open(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", env.Store, err)
	}
	return s, nil
}

// sessionFlag returns --session, falling back to $TOOLGATE_SESSION_ID.
func sessionFlag(cmd *cobra.Command, env *config.ToolgateEnv) (int64, error) {
	session, _ := cmd.Flags().GetInt64("session")
	if session == 0 {
		session = env.SessionID
	}
	if session <= 0 {
		return 0, fmt.Errorf("--session is required (or set TOOLGATE_SESSION_ID)")
	}
	return session, nil
}

// agentFlag returns --agent, falling back to $TOOLGATE_AGENT_NAME.
func agentFlag(cmd *cobra.Command, env *config.ToolgateEnv) (string, error) {
	agent, _ := cmd.Flags().GetString("agent")
	if agent == "" {
		agent = env.AgentName
	}
	if agent == "" {
		return "", fmt.Errorf("--agent is required (or set TOOLGATE_AGENT_NAME)")
	}
	return agent, nil
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("session", 0, "Session id (default $TOOLGATE_SESSION_ID)")
	cmd.Flags().String("agent", "", "Agent name (default $TOOLGATE_AGENT_NAME)")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
