package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/compliance"
	"github.com/joss/toolgate/internal/render"
	"github.com/joss/toolgate/internal/tool"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools of a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			category, _ := cmd.Flags().GetString("category")

			// Listing never touches the store; task handlers only need
			// non-nil collaborators to describe themselves.
			deps := tool.Deps{WorkDir: env.WorkDir, Runs: nopRuns{}, Gate: compliance.NewValidator(nil)}
			reg, err := tool.Catalog(category, deps)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(reg.List())
			}
			render.Stdout().Print(render.New(pretty).Tools(category, reg.List()))
			return nil
		},
	}

	cmd.Flags().String("category", tool.CategoryFiles, fmt.Sprintf("Tool category %v", tool.Categories()))

	policy := &cobra.Command{
		Use:   "policy",
		Short: "Show the compliance category table",
		Run: func(cmd *cobra.Command, args []string) {
			w := render.Stdout()
			for _, rule := range compliance.DefaultPolicy().Rules() {
				w.Println("%-16s min %d  one of %v", rule.Category, rule.Requirement.MinToolsRequired, rule.Requirement.RequiredTools)
			}
			w.Println("%-16s min %d  one of %v", "(default)", compliance.DefaultRequirement.MinToolsRequired, compliance.DefaultRequirement.RequiredTools)
		},
	}
	cmd.AddCommand(policy)
	return cmd
}

// nopRuns satisfies the tasks catalog when only its definitions are needed.
type nopRuns struct{}

func (nopRuns) Start(context.Context, int64, string) error {
	return nil
}

func (nopRuns) AppendToolUse(context.Context, int64, string, string) error {
	return nil
}

func (nopRuns) Complete(context.Context, int64, string, string, time.Duration) error {
	return nil
}
