package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/agent"
	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/controller"
	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/logging"
	"github.com/rewindhq/rewind/internal/paths"
	"github.com/rewindhq/rewind/internal/redact"
	"github.com/rewindhq/rewind/internal/sessioninfo"
	"github.com/rewindhq/rewind/internal/telemetry"
)

// env bundles everything a subcommand needs to talk to the core: the
// resolved project root and rewind directory, the loaded configuration, a
// ready-to-use Controller, and the process-lifetime telemetry client.
type env struct {
	projectRoot     string
	rewindDir       string
	globalConfigDir string
	cfg             config.RewindConfig
	ctrl            *controller.Controller
	telemetry       telemetry.Client
}

type envKey struct{}

func envFromContext(ctx context.Context) *env {
	e, _ := ctx.Value(envKey{}).(*env)
	return e
}

// buildEnv resolves the project root, loads configuration, initializes
// logging, and constructs a Controller. Subcommands call this once at the
// top of their RunE and store the result on the command's context so
// PersistentPostRun can flush telemetry and the version-check notice.
func buildEnv(cmd *cobra.Command, storageModeOverride string) (*env, error) {
	root, err := paths.ProjectRoot("")
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	globalConfigPath, err := paths.GlobalConfigPath()
	if err != nil {
		return nil, fmt.Errorf("resolving global config path: %w", err)
	}
	globalConfigDir := filepath.Dir(globalConfigPath)

	cfg, err := config.Load(globalConfigPath, root)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	storageMode := string(cfg.StorageMode)
	if v := os.Getenv("REWIND_STORAGE"); v != "" {
		storageMode = v
	}
	if storageModeOverride != "" {
		storageMode = storageModeOverride
	}

	rewindDir, err := paths.RewindDir(root, storageMode)
	if err != nil {
		return nil, fmt.Errorf("resolving rewind directory: %w", err)
	}

	sessionID := uuid.NewString()
	if err := logging.Init(rewindDir, sessionID); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: logging disabled: %v\n", err)
	}

	matcher := ignore.New(cfg.Ignore)
	registry, err := agent.LoadBundled()
	if err != nil {
		registry = agent.Default()
	}

	ctrl, err := controller.New(rewindDir, root, matcher, registry.Hints(), cfg.Tier)
	if err != nil {
		return nil, fmt.Errorf("initializing controller: %w", err)
	}

	telemetryEnabled := os.Getenv("REWIND_NO_TELEMETRY") == ""
	client := telemetry.NewClient(Version, telemetryEnabled)

	e := &env{
		projectRoot:     root,
		rewindDir:       rewindDir,
		globalConfigDir: globalConfigDir,
		cfg:             cfg,
		ctrl:            ctrl,
		telemetry:       client,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))
	return e, nil
}

// track emits a best-effort telemetry event naming only the subcommand and
// the flags it was given — never file paths or transcript content.
func (e *env) track(op, agentID string, extra map[string]any) {
	e.telemetry.TrackOperation(op, agentID, extra)
}

// currentAgent returns the agent id recorded in Session Info, or "unknown"
// if none is known — used only to label telemetry events, never to gate
// behavior.
func (e *env) currentAgent() string {
	if si, _ := sessioninfo.Load(e.rewindDir); si != nil && si.Agent != "" {
		return si.Agent
	}
	return "unknown"
}

func (e *env) logFailure(ctx context.Context, op string, err error) error {
	safe := redact.String(err.Error())
	logging.Error(ctx, "operation failed", "op", op, "error", safe)
	fmt.Fprintf(os.Stderr, "Error: %s\n", safe)
	return NewSilentError(err)
}
