package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/compliance"
	"github.com/joss/toolgate/internal/logging"
	"github.com/joss/toolgate/internal/metrics"
	"github.com/joss/toolgate/internal/protocol"
	"github.com/joss/toolgate/internal/runtime"
	"github.com/joss/toolgate/internal/tool"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a tool catalog over stdin/stdout",
		Long: `Serve one tool category as line-delimited JSON-RPC on stdin/stdout.
Logs go to stderr. The server exits cleanly when stdin is closed.

When TOOLGATE_SESSION_ID and TOOLGATE_AGENT_NAME are set, every tool call
is appended to that run's execution record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			category, _ := cmd.Flags().GetString("category")
			metricsOut, _ := cmd.Flags().GetString("metrics-out")
			log := logging.New("serve").WithSession(env.SessionID).WithAgent(env.AgentName)

			shutdown := runtime.NewShutdownManager(runtime.DefaultShutdownTimeout)
			stop := shutdown.ListenForSignals()
			defer stop()
			ctx := shutdown.Context()

			deps := tool.Deps{WorkDir: env.WorkDir, SessionID: env.SessionID}
			m := metrics.Global()
			opts := []protocol.Option{
				protocol.WithServerInfo("toolgate-"+category, version),
				protocol.WithMetrics(m),
			}

			if tool.NeedsStore(category) || env.RecordsUsage() {
				s, err := openStore(ctx, &env)
				if err != nil {
					log.Error("store_unavailable", nil, err)
					return err
				}
				shutdown.Register("store", func(context.Context) error { return s.Close() })

				deps.Runs = s
				deps.Gate = compliance.NewValidator(s, compliance.WithMetrics(m))
				if env.RecordsUsage() {
					opts = append(opts, protocol.WithUsageRecorder(s, env.SessionID, env.AgentName))
				}
			}

			if metricsOut != "" {
				shutdown.Register("metrics", func(context.Context) error { return writeMetrics(metricsOut, m) })
			}

			reg, err := tool.Catalog(category, deps)
			if err != nil {
				_ = shutdown.Shutdown()
				return err
			}

			srv := protocol.NewServer(reg, opts...)
			// A signal must unblock a pending read on stdin.
			go func() {
				<-ctx.Done()
				os.Stdin.Close()
			}()
			runErr := srv.Run(ctx, os.Stdin, os.Stdout)
			interrupted := ctx.Err() != nil
			if err := shutdown.Shutdown(); err != nil {
				log.Warn("shutdown_incomplete", nil, err)
			}
			if runErr != nil && !interrupted {
				log.Error("server_failed", map[string]any{"category": category}, runErr)
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().String("category", tool.CategoryFiles, fmt.Sprintf("Tool category to serve %v", tool.Categories()))
	cmd.Flags().String("workdir", "", "Base directory for relative paths (default $TOOLGATE_WORKDIR or cwd)")
	cmd.Flags().String("metrics-out", "", "Write Prometheus-format counters to this file on exit")
	addStoreFlags(cmd)
	return cmd
}

func writeMetrics(path string, m *metrics.Metrics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
