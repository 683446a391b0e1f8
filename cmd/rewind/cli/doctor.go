package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/logging"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate the checkpoint store and surface drift between the two newest checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.doctor")

			st, err := e.ctrl.ValidateSystem()
			if err != nil {
				return e.logFailure(ctx, "doctor", err)
			}

			out := cmd.OutOrStdout()
			if len(st.Issues) == 0 {
				fmt.Fprintln(out, "No issues found.")
			} else {
				fmt.Fprintln(out, "Issues found:")
				for _, issue := range st.Issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			checkpoints, err := e.ctrl.Store.List()
			if err != nil {
				return e.logFailure(ctx, "doctor", err)
			}
			if len(checkpoints) >= 2 {
				diff, err := e.ctrl.CompareManifests(checkpoints[1].Name, checkpoints[0].Name)
				if err != nil {
					logging.Warn(ctx, "manifest comparison failed", "error", err.Error())
				} else if len(diff.Added) > 0 || len(diff.Removed) > 0 {
					fmt.Fprintf(out, "\nFile drift between %s and %s:\n", checkpoints[1].Name, checkpoints[0].Name)
					for _, p := range diff.Added {
						fmt.Fprintf(out, "  + %s\n", p)
					}
					for _, p := range diff.Removed {
						fmt.Fprintf(out, "  - %s\n", p)
					}
				}
			}

			e.track("doctor", e.currentAgent(), map[string]any{"issues": len(st.Issues)})

			if len(st.Issues) > 0 {
				return NewSilentError(fmt.Errorf("%d issue(s) found", len(st.Issues)))
			}
			return nil
		},
	}
}
