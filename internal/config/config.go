// Package config loads and merges Rewind's configuration: storage mode,
// checkpoint tier, and ignore patterns, from a global file, a project-local
// file, and built-in defaults (project overrides global overrides
// defaults).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/jsonutil"
)

// StorageMode selects where checkpoints live.
type StorageMode string

const (
	StorageProject StorageMode = "project"
	StorageGlobal  StorageMode = "global"
)

// Tier names, matching the bundled tier presets.
const (
	TierMinimal    = "minimal"
	TierBalanced   = "balanced"
	TierAggressive = "aggressive"
)

// AntiSpamConfig throttles checkpoint creation frequency.
type AntiSpamConfig struct {
	Enabled           bool `json:"enabled"`
	MinIntervalSeconds int  `json:"minIntervalSeconds"`
}

// SignificanceConfig determines whether a change is worth checkpointing.
type SignificanceConfig struct {
	Enabled       bool     `json:"enabled"`
	MinChangeSize int      `json:"minChangeSize"`
	CriticalFiles []string `json:"criticalFiles"`
}

// DefaultCriticalFiles mirrors the Python SignificanceConfig default list.
var DefaultCriticalFiles = []string{
	"package.json", "requirements.txt", "Dockerfile", "docker-compose.yml",
	"tsconfig.json", "pyproject.toml", "Cargo.toml", "go.mod",
	"*.config.js", "*.config.ts",
}

// TierConfig is the anti-spam/significance policy for a named tier.
type TierConfig struct {
	Tier          string              `json:"tier"`
	Description   string              `json:"description"`
	AntiSpam      AntiSpamConfig      `json:"antiSpam"`
	Significance  SignificanceConfig  `json:"significance"`
}

// DefaultTierConfig returns the "balanced" tier's defaults.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		Tier: TierBalanced,
		AntiSpam: AntiSpamConfig{
			Enabled:            true,
			MinIntervalSeconds: 30,
		},
		Significance: SignificanceConfig{
			Enabled:       true,
			MinChangeSize: 50,
			CriticalFiles: append([]string(nil), DefaultCriticalFiles...),
		},
	}
}

// tierFromRaw builds a TierConfig from a raw camelCase JSON map, applying
// defaults field-by-field the way RewindConfig.from_dict does in Python.
func tierFromRaw(tierName string, raw map[string]any) TierConfig {
	out := DefaultTierConfig()
	out.Tier = tierName

	if v, ok := raw["description"].(string); ok {
		out.Description = v
	}
	if as, ok := raw["antiSpam"].(map[string]any); ok {
		if v, ok := as["enabled"].(bool); ok {
			out.AntiSpam.Enabled = v
		}
		if v, ok := as["minIntervalSeconds"].(float64); ok {
			out.AntiSpam.MinIntervalSeconds = int(v)
		}
	}
	if sig, ok := raw["significance"].(map[string]any); ok {
		if v, ok := sig["enabled"].(bool); ok {
			out.Significance.Enabled = v
		}
		if v, ok := sig["minChangeSize"].(float64); ok {
			out.Significance.MinChangeSize = int(v)
		}
		if v, ok := sig["criticalFiles"].([]any); ok {
			files := make([]string, 0, len(v))
			for _, f := range v {
				if s, ok := f.(string); ok {
					files = append(files, s)
				}
			}
			out.Significance.CriticalFiles = files
		}
	}
	return out
}

// RewindConfig is the top-level configuration: storage mode, the active
// tier, and ignore overrides.
type RewindConfig struct {
	StorageMode StorageMode   `json:"-"`
	Tier        TierConfig    `json:"-"`
	Ignore      ignore.Config `json:"-"`
}

// Default returns the built-in configuration with no file overrides.
func Default() RewindConfig {
	return RewindConfig{
		StorageMode: StorageProject,
		Tier:        DefaultTierConfig(),
		Ignore:      ignore.DefaultConfig(),
	}
}

// Load reads the global config file and, if projectRoot is non-empty, the
// project-local config file, deep-merging project over global over
// defaults, and decodes the result into a RewindConfig.
func Load(globalConfigPath, projectRoot string) (RewindConfig, error) {
	merged := map[string]any{}

	if data, ok := readJSONIfExists(globalConfigPath); ok {
		merged = deepMerge(merged, data)
	}

	if projectRoot != "" {
		projectPath := filepath.Join(projectRoot, ".agent", "rewind", "config.json")
		if data, ok := readJSONIfExists(projectPath); ok {
			merged = deepMerge(merged, data)
		}
	}

	return fromRaw(merged), nil
}

func readJSONIfExists(path string) (map[string]any, bool) {
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path resolved from trusted config locations
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// deepMerge merges override into base, recursing into nested objects and
// otherwise letting override win, matching ConfigLoader._deep_merge.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if existing, ok := result[k].(map[string]any); ok {
			if incoming, ok := v.(map[string]any); ok {
				result[k] = deepMerge(existing, incoming)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func fromRaw(data map[string]any) RewindConfig {
	cfg := Default()

	if storage, ok := data["storage"].(map[string]any); ok {
		if mode, ok := storage["mode"].(string); ok && (mode == "project" || mode == "global") {
			cfg.StorageMode = StorageMode(mode)
		}
	}

	preset := TierBalanced
	if p, ok := data["preset"].(string); ok && isValidTier(p) {
		preset = p
	}
	runtime, _ := data["runtime"].(map[string]any)
	cfg.Tier = tierFromRaw(preset, runtime)

	if ign, ok := data["ignore"].(map[string]any); ok {
		cfg.Ignore = ignoreConfigFromRaw(ign)
	}

	return cfg
}

func ignoreConfigFromRaw(data map[string]any) ignore.Config {
	cfg := ignore.DefaultConfig()
	if v, ok := data["ignorePatterns"].([]any); ok {
		cfg.Patterns = toStringSlice(v)
	}
	if v, ok := data["additionalIgnores"].([]any); ok {
		cfg.AdditionalIgnores = toStringSlice(v)
	}
	if v, ok := data["forceInclude"].([]any); ok {
		cfg.ForceInclude = toStringSlice(v)
	}
	return cfg
}

func toStringSlice(v []any) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func isValidTier(t string) bool {
	return t == TierMinimal || t == TierBalanced || t == TierAggressive
}

// Save writes config's storage mode to path, creating parent directories
// as needed. Matches ConfigLoader.save_config, which persists only the
// storage mode — tier and ignore overrides are edited by hand or by
// installing a new preset, not round-tripped through this writer.
func Save(path string, cfg RewindConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	doc := map[string]any{
		"storage": map[string]any{"mode": string(cfg.StorageMode)},
	}
	data, err := jsonutil.MarshalIndentWithNewline(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
