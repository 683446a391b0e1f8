package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/controller"
	"github.com/rewindhq/rewind/internal/logging"
)

func newRestoreCmd() *cobra.Command {
	var mode string
	var skipBackup bool
	var transcriptStyle string

	cmd := &cobra.Command{
		Use:   "restore [name]",
		Short: "Restore a checkpoint's code, transcript context, or both",
		Long: "Restore a checkpoint. Omit the name to pick one interactively " +
			"from the list of existing checkpoints.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.restore")

			restoreMode, err := parseRestoreMode(mode)
			if err != nil {
				return e.logFailure(ctx, "restore", err)
			}
			style, err := parseTranscriptStyle(transcriptStyle)
			if err != nil {
				return e.logFailure(ctx, "restore", err)
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				name, err = pickCheckpoint(e, "Restore which checkpoint?")
				if err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
						return nil
					}
					return e.logFailure(ctx, "restore", err)
				}
			}

			ctx = logging.WithCheckpoint(ctx, name)
			result, err := e.ctrl.Restore(name, restoreMode, skipBackup, style)
			if err != nil {
				return e.logFailure(ctx, "restore", err)
			}

			e.track("restore", e.currentAgent(), map[string]any{
				"mode":            string(restoreMode),
				"transcriptStyle": string(style),
			})
			printRestoreResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "all", "What to restore: all, code, or context")
	cmd.Flags().BoolVar(&skipBackup, "skip-backup", false, "Don't back up the current workspace before restoring")
	cmd.Flags().StringVar(&transcriptStyle, "transcript", "fork", "How to restore transcript context: fork or in_place")

	return cmd
}

func parseRestoreMode(s string) (controller.RestoreMode, error) {
	switch s {
	case "all", "":
		return controller.RestoreAll, nil
	case "code":
		return controller.RestoreCode, nil
	case "context":
		return controller.RestoreContext, nil
	default:
		return "", fmt.Errorf("invalid --mode %q: expected all, code, or context", s)
	}
}

func parseTranscriptStyle(s string) (controller.TranscriptRestoreStyle, error) {
	switch s {
	case "fork", "":
		return controller.TranscriptFork, nil
	case "in_place":
		return controller.TranscriptInPlace, nil
	default:
		return "", fmt.Errorf("invalid --transcript %q: expected fork or in_place", s)
	}
}

func pickCheckpoint(e *env, title string) (string, error) {
	checkpoints, err := e.ctrl.Store.List()
	if err != nil {
		return "", err
	}
	if len(checkpoints) == 0 {
		return "", errors.New("no checkpoints exist yet")
	}

	options := make([]huh.Option[string], 0, len(checkpoints))
	for _, cp := range checkpoints {
		label := fmt.Sprintf("%s  %s", cp.Name, cp.Description)
		options = append(options, huh.NewOption(label, cp.Name))
	}

	var selected string
	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func printRestoreResult(cmd *cobra.Command, result controller.RestoreResult) {
	out := cmd.OutOrStdout()
	if result.Code != nil {
		fmt.Fprintf(out, "Code restored: %d files.\n", result.Code.FileCount)
	}
	if result.ForkPath != "" {
		fmt.Fprintf(out, "Transcript forked to %s\n", result.ForkPath)
	}
	if result.BackupPath != "" {
		fmt.Fprintf(out, "Previous transcript backed up to %s\n", result.BackupPath)
	}
	if result.ContextError != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Context restore failed (code restore, if requested, still succeeded): %v\n", result.ContextError)
	}
}
