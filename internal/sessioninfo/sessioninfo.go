// Package sessioninfo reads and writes the per-project Session Info file:
// advisory state mapping a project to its current agent and transcript
// path, written best-effort by the hook collaborator and read by the
// controller to resolve "the current transcript" when a caller doesn't
// supply one explicitly.
package sessioninfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewindhq/rewind/internal/jsonutil"
)

// FileName is the Session Info file's name within the rewind storage
// directory.
const FileName = "session.json"

// Info is the Session Info record. Advisory only: a read-modify-write race
// may lose an update, which is acceptable since nothing downstream treats
// it as authoritative.
type Info struct {
	Version        int     `json:"version"`
	TranscriptPath string  `json:"transcript_path"`
	SessionID      string  `json:"session_id"`
	Agent          string  `json:"agent"`
	ProjectRoot    string  `json:"project_root"`
	UpdatedAt      string  `json:"updated_at"`
	EnvFile        *string `json:"env_file,omitempty"`
}

// CurrentVersion is written into every new Session Info record.
const CurrentVersion = 1

// Load reads the Session Info file at rewindDir/session.json. Returns nil,
// nil if it doesn't exist or fails to parse — callers should treat either
// as "no session info available" rather than an error.
func Load(rewindDir string) (*Info, error) {
	path := filepath.Join(rewindDir, FileName)
	data, err := os.ReadFile(path) //nolint:gosec // path constructed from the resolved rewind storage directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil //nolint:nilerr // advisory file; unreadable is treated like absent
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, nil //nolint:nilerr // advisory file; corrupt is treated like absent
	}
	return &info, nil
}

// Save writes info to rewindDir/session.json, overwriting any previous
// record, via a tempfile-and-rename so readers never see a partial write.
func Save(rewindDir string, info Info) error {
	if err := os.MkdirAll(rewindDir, 0o750); err != nil {
		return fmt.Errorf("creating rewind directory: %w", err)
	}
	if info.Version == 0 {
		info.Version = CurrentVersion
	}
	if info.UpdatedAt == "" {
		info.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := jsonutil.MarshalIndentWithNewline(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session info: %w", err)
	}

	path := filepath.Join(rewindDir, FileName)
	tmp, err := os.CreateTemp(rewindDir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup; no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing session info: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	return os.Rename(tmpPath, path)
}
