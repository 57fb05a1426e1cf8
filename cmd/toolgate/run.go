package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/render"
	"github.com/joss/toolgate/internal/store"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage execution records",
	}
	cmd.PersistentFlags().String("store", "", "Execution store: sqlite or graph (default $TOOLGATE_STORE)")
	cmd.PersistentFlags().String("db", "", "SQLite database path (default $TOOLGATE_DB)")

	start := &cobra.Command{
		Use:   "start",
		Short: "Create a pending execution record",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			session, err := sessionFlag(cmd, &env)
			if err != nil {
				return err
			}
			agent, err := agentFlag(cmd, &env)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, err := openStore(ctx, &env)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Start(ctx, session, agent); err != nil {
				return err
			}
			render.Stdout().Println("started session=%d agent=%s", session, agent)
			return nil
		},
	}
	addRunFlags(start)

	complete := &cobra.Command{
		Use:   "complete SUMMARY",
		Short: "Store the summary and duration of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			session, err := sessionFlag(cmd, &env)
			if err != nil {
				return err
			}
			agent, err := agentFlag(cmd, &env)
			if err != nil {
				return err
			}
			duration, _ := cmd.Flags().GetDuration("duration")
			ctx := context.Background()
			s, err := openStore(ctx, &env)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Complete(ctx, session, agent, args[0], duration); err != nil {
				return err
			}
			render.Stdout().Println("completed session=%d agent=%s", session, agent)
			return nil
		},
	}
	addRunFlags(complete)
	complete.Flags().Duration("duration", 0, "Run duration")

	record := &cobra.Command{
		Use:   "record TOOL",
		Short: "Append one tool use to a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			session, err := sessionFlag(cmd, &env)
			if err != nil {
				return err
			}
			agent, err := agentFlag(cmd, &env)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, err := openStore(ctx, &env)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.AppendToolUse(ctx, session, agent, args[0])
		},
	}
	addRunFlags(record)

	show := &cobra.Command{
		Use:   "show",
		Short: "Print an execution record",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			session, err := sessionFlag(cmd, &env)
			if err != nil {
				return err
			}
			agent, err := agentFlag(cmd, &env)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, err := openStore(ctx, &env)
			if err != nil {
				return err
			}
			defer s.Close()
			rec, err := s.Get(ctx, session, agent)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(rec)
			}
			w := render.Stdout()
			w.Println("session:    %d", rec.SessionID)
			w.Println("agent:      %s", rec.AgentName)
			w.Println("tools:      %v", store.DecodeTools(rec.ToolsUsed))
			w.Println("validation: %s", displayStatus(string(rec.ValidationStatus)))
			if rec.ValidationTimestamp != nil {
				w.Println("checked:    %s", rec.ValidationTimestamp.Format(time.RFC3339))
			}
			if rec.ActualDuration > 0 {
				w.Println("duration:   %s", render.FormatDuration(rec.ActualDuration))
			}
			w.Println("summary:    %s", render.Truncate(rec.ResultsSummary, 200))
			return nil
		},
	}
	addRunFlags(show)

	cmd.AddCommand(start, complete, record, show)
	return cmd
}

func displayStatus(s string) string {
	if s == "" {
		return "(not validated)"
	}
	return s
}
