package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/compliance"
	"github.com/joss/toolgate/internal/render"
)

type verdictJSON struct {
	Accepted  bool     `json:"accepted"`
	Reason    string   `json:"reason"`
	Agent     string   `json:"agent_name"`
	Session   int64    `json:"session_id"`
	Category  string   `json:"category,omitempty"`
	ToolsUsed []string `json:"tools_used"`
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Accept or reject a finished agent run",
		Long: `Check that an agent run used enough category-appropriate tools and
produced a substantive summary, then store the verdict on its record.

Exit status is 0 when accepted, 1 when rejected, 2 when the record is
missing or the store is unavailable.`,
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
			keepFailures, _ := cmd.Flags().GetBool("record-failures")

			ctx := context.Background()
			s, err := openStore(ctx, &env)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return exitCode(2)
			}
			defer s.Close()

			v := compliance.NewValidator(s, compliance.WithFailurePersistence(keepFailures))
			verdict := v.Validate(ctx, agent, session)

			if jsonOut {
				tools := verdict.ToolsUsed
				if tools == nil {
					tools = []string{}
				}
				if err := printJSON(verdictJSON{
					Accepted:  verdict.Accepted,
					Reason:    verdict.Reason,
					Agent:     agent,
					Session:   session,
					Category:  verdict.Category,
					ToolsUsed: tools,
				}); err != nil {
					return err
				}
			} else {
				render.Stdout().Print(render.New(pretty).Verdict(agent, session, verdict))
			}

			switch {
			case verdict.Accepted:
				return nil
			case compliance.IsRejection(verdict.Err):
				return exitCode(1)
			default:
				return exitCode(2)
			}
		},
	}

	addRunFlags(cmd)
	addStoreFlags(cmd)
	cmd.Flags().Bool("record-failures", true, "Store rejections as failed (false leaves the record untouched)")
	return cmd
}
