// Package cli implements the rewind command-line surface: a thin cobra
// adapter over internal/controller, grounded on the teacher's cmd/entire/cli
// root command and subcommand conventions.
package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/versioncheck"
)

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE       Set to any value to enable accessibility mode, which uses
                    simpler text prompts instead of interactive TUI pickers.
  REWIND_STORAGE    "project" or "global"; overrides the configured storage mode.
  REWIND_LOG_LEVEL  debug, info, warn, or error (default info).
  REWIND_DEBUG      Set to any truthy value for debug-level logging when
                    REWIND_LOG_LEVEL is unset.
  REWIND_NO_TELEMETRY  Set to any value to disable anonymous usage telemetry.
`

// Version information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// SilentError wraps an error whose message has already been printed to the
// user, so main's top-level handler does not print it a second time.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewSilentError wraps err as a SilentError.
func NewSilentError(err error) *SilentError {
	return &SilentError{Err: err}
}

// IsAccessibleMode reports whether ACCESSIBLE is set to a non-empty value.
func IsAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

func rewindTheme() *huh.Theme {
	return huh.ThemeDracula()
}

// NewAccessibleForm builds a huh form from groups, switching to accessible
// (screen-reader-friendly, non-TUI) mode when IsAccessibleMode is true.
func NewAccessibleForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(rewindTheme())
	if IsAccessibleMode() {
		form = form.WithAccessible(true)
	}
	return form
}

// NewRootCmd builds the rewind root command and registers every subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Checkpoint and rewind AI coding agent sessions",
		Long: "rewind snapshots your workspace and agent transcript together, " +
			"so you can restore code, conversation context, or both to any " +
			"earlier point in a session." + accessibilityHelp,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			flushEnv(cmd)
		},
	}

	cmd.AddCommand(
		newCheckpointCmd(),
		newListCmd(),
		newRestoreCmd(),
		newRewindCmd(),
		newUndoCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newPruneCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rewind version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rewind %s (commit %s) %s %s/%s\n",
				Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

// flushEnv closes the telemetry client and prints any pending version-check
// notice, once per process, after the subcommand's RunE has returned.
func flushEnv(cmd *cobra.Command) {
	e := envFromContext(cmd.Context())
	if e == nil {
		return
	}
	e.telemetry.Close()
	if notice := versioncheck.CheckAndNotify(cmd.Context(), e.globalConfigDir, Version); notice != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), notice)
	}
}
