package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/toolgate/internal/render"
	"github.com/joss/toolgate/internal/selftest"
)

func selftestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Check the environment, the execution store, and the protocol loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := settings(cmd)
			timeout, _ := cmd.Flags().GetDuration("timeout")
			w := render.Stdout()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			report := selftest.Check(&env)
			probes := []selftest.Probe{selftest.ProtocolProbe()}
			if report.IsHealthy() {
				s, err := openStore(ctx, &env)
				if err != nil {
					report.Errors = append(report.Errors, err.Error())
				} else {
					defer s.Close()
					probes = append(probes, selftest.StoreProbe(s))
				}
			}
			health := selftest.CheckHealth(ctx, probes...)

			if !jsonOut {
				w.Print(report.Summary())
				w.Println("")
			}

			if jsonOut {
				if err := printJSON(map[string]any{"environment": report, "health": health}); err != nil {
					return err
				}
			} else {
				w.Print(render.New(pretty).Health(health))
			}

			if !report.IsHealthy() || !health.Healthy() {
				return exitCode(1)
			}
			return nil
		},
	}

	cmd.Flags().String("workdir", "", "Directory to check (default $TOOLGATE_WORKDIR or cwd)")
	cmd.Flags().Duration("timeout", 10*time.Second, "Overall probe timeout")
	addStoreFlags(cmd)
	return cmd
}
