// Package main provides the toolgate CLI entrypoint.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/config"
	"github.com/joss/toolgate/internal/logging"
	"github.com/joss/toolgate/internal/render"
)

var (
	version  = "0.1.0"
	pretty   bool
	jsonOut  bool
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "toolgate",
		Short: "Tool servers and compliance gate for autonomous agents",
		Long: `toolgate exposes tool catalogs to an orchestrator over line-delimited
JSON-RPC on stdin/stdout, and gates agent runs on the tools they used.

Usage modes:
  toolgate serve --category files     Serve a tool catalog on stdio
  toolgate validate --session 3 ...   Accept or reject a finished agent run
  toolgate run start|complete|show    Manage execution records from scripts`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env := config.Env()
			level := logLevel
			if level == "" {
				level = env.LogLevel
			}
			logging.SetLevel(logging.Level(level))

			if !cmd.Flags().Changed("pretty") {
				pretty = render.IsTerminal(os.Stdout)
			}
			render.SetColor(pretty && !jsonOut)
		},
	}

	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty print output (default: when stdout is a terminal)")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default $TOOLGATE_LOG_LEVEL)")

	root.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "gate", Title: "Gate:"},
	)

	serve := serveCmd()
	serve.GroupID = "server"
	root.AddCommand(serve)

	tools := toolsCmd()
	tools.GroupID = "server"
	root.AddCommand(tools)

	selftest := selftestCmd()
	selftest.GroupID = "server"
	root.AddCommand(selftest)

	validate := validateCmd()
	validate.GroupID = "gate"
	root.AddCommand(validate)

	run := runCmd()
	run.GroupID = "gate"
	root.AddCommand(run)

	root.SetVersionTemplate(fmt.Sprintf("toolgate %s\n", version))
	return root
}
