// Package history appends to the Restore History log: a single JSON array
// with one entry for each restore (including the one undo performs) that
// forked or rewrote a transcript. Rewinds and code-only restores are not
// recorded, and nothing in rewind reads the log back except for audit.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewindhq/rewind/internal/jsonutil"
)

// FileName is the Restore History file's name within the rewind storage
// directory.
const FileName = "restore-history.json"

// TranscriptMode records how a restore handled the transcript: fork
// creates a new transcript file, in_place truncates the live one in place.
type TranscriptMode string

const (
	ModeFork     TranscriptMode = "fork"
	ModeInPlace  TranscriptMode = "in_place"
)

// TranscriptOutcome is the transcript sub-object of a Restore History
// entry.
type TranscriptOutcome struct {
	Mode       TranscriptMode `json:"mode"`
	ForkPath   string         `json:"fork_path,omitempty"`
	BackupPath string         `json:"backup_path,omitempty"`
}

// Entry is one Restore History record.
type Entry struct {
	Timestamp  string             `json:"timestamp"`
	Checkpoint string             `json:"checkpoint"`
	Transcript *TranscriptOutcome `json:"transcript,omitempty"`
}

// Load reads every entry from rewindDir/restore-history.json, oldest
// first. Returns an empty slice, not an error, if the file doesn't exist
// or fails to parse — the log is advisory, best-effort state.
func Load(rewindDir string) ([]Entry, error) {
	path := filepath.Join(rewindDir, FileName)
	data, err := os.ReadFile(path) //nolint:gosec // path constructed from the resolved rewind storage directory
	if err != nil {
		return nil, nil //nolint:nilerr // advisory log; missing is treated as empty
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil //nolint:nilerr // advisory log; corrupt is treated as empty
	}
	return entries, nil
}

// Append reads the existing log, adds entry (stamping Timestamp if unset),
// and rewrites the file atomically. A read-modify-write race with a
// concurrent Append may lose one of the two entries — acceptable for an
// advisory log, per the concurrency model's tolerance for Session
// Info/Restore History races.
func Append(rewindDir string, entry Entry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	existing, err := Load(rewindDir)
	if err != nil {
		return err
	}
	entries := append(existing, entry)

	if err := os.MkdirAll(rewindDir, 0o750); err != nil {
		return fmt.Errorf("creating rewind directory: %w", err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding restore history: %w", err)
	}

	path := filepath.Join(rewindDir, FileName)
	tmp, err := os.CreateTemp(rewindDir, ".restore-history-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup; no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing restore history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	return os.Rename(tmpPath, path)
}
