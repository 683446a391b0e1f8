package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/controller"
	"github.com/rewindhq/rewind/internal/logging"
)

func newRewindCmd() *cobra.Command {
	var both bool
	var inPlace bool

	cmd := &cobra.Command{
		Use:   "rewind <n>",
		Short: "Rewind the current transcript past the last n user prompts",
		Long: "Find the byte offset preceding the nth-from-the-end user " +
			"prompt in the current transcript and fork (or truncate) it to " +
			"end there. With --both, also restores the workspace code from " +
			"the last checkpoint that precedes that point.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.rewind")

			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return e.logFailure(ctx, "rewind", fmt.Errorf("n must be a positive integer, got %q", args[0]))
			}

			result, err := e.ctrl.RewindBack(controller.RewindOptions{N: n, Both: both, InPlace: inPlace})
			if err != nil {
				return e.logFailure(ctx, "rewind", err)
			}

			e.track("rewind", e.currentAgent(), map[string]any{"n": n, "both": both, "inPlace": inPlace})
			printRewindResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&both, "both", false, "Also restore workspace code from the last checkpoint preceding the rewind point")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Truncate the live transcript instead of forking a new one")

	return cmd
}

func printRewindResult(cmd *cobra.Command, result controller.RewindResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rewinding past %d prompt(s):\n", len(result.Prompts))
	for _, p := range result.Prompts {
		fmt.Fprintf(out, "  - %s\n", truncatePrompt(p))
	}
	if result.ForkPath != "" {
		fmt.Fprintf(out, "Transcript forked to %s\n", result.ForkPath)
	}
	if result.BackupPath != "" {
		fmt.Fprintf(out, "Previous transcript backed up to %s\n", result.BackupPath)
	}
	if result.CodeRestored != nil {
		fmt.Fprintf(out, "Code restored: %d files.\n", result.CodeRestored.FileCount)
	}
	if result.Note != "" {
		fmt.Fprintf(out, "Note: %s\n", result.Note)
	}
}

func truncatePrompt(s string) string {
	const maxLen = 80
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
