// Package controller is the single orchestration surface tying together
// the checkpoint store, transcript manager, ignore matcher, session info,
// and restore history into the operations a CLI or hook dispatcher calls:
// create_checkpoint, restore, rewind_back, undo, get_status, and
// validate_system.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewindhq/rewind/internal/besteffort"
	"github.com/rewindhq/rewind/internal/checkpoint"
	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/gitmeta"
	"github.com/rewindhq/rewind/internal/history"
	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/sessioninfo"
	"github.com/rewindhq/rewind/internal/transcript"
)

// Controller wires the checkpoint store, transcript manager, and
// session/history state together under a single rewind directory.
type Controller struct {
	Store       *checkpoint.Store
	Transcripts *transcript.Manager
	RewindDir   string
	ProjectRoot string
	Tier        config.TierConfig
}

// New constructs a Controller, creating the checkpoint store beneath
// rewindDir/checkpoints.
func New(rewindDir, projectRoot string, matcher *ignore.Matcher, hints []transcript.AgentHint, tier config.TierConfig) (*Controller, error) {
	checkpointsDir := filepath.Join(rewindDir, "checkpoints")
	store, err := checkpoint.New(checkpointsDir, projectRoot, matcher)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	return &Controller{
		Store:       store,
		Transcripts: transcript.NewManager(hints),
		RewindDir:   rewindDir,
		ProjectRoot: projectRoot,
		Tier:        tier,
	}, nil
}

// CreateCheckpoint builds a new checkpoint and, if a transcript path is
// available (argument, else Session Info), best-effort attaches a
// transcript snapshot. A transcript failure never fails the checkpoint
// itself — it is recorded as hasTranscript=false.
func (c *Controller) CreateCheckpoint(ctx context.Context, description string, sessionID *string, transcriptPath string) (checkpoint.Metadata, error) {
	if err := os.MkdirAll(c.RewindDir, 0o750); err != nil {
		return checkpoint.Metadata{}, fmt.Errorf("creating rewind directory: %w", err)
	}

	meta, err := c.Store.Create(description, sessionID)
	if err != nil {
		return checkpoint.Metadata{}, err
	}

	if info := gitmeta.Lookup(c.ProjectRoot); info != nil {
		_, _ = c.Store.UpdateMetadata(meta.Name, func(m *checkpoint.Metadata) {
			m.Git = &checkpoint.GitInfo{Branch: info.Branch, Commit: info.Commit}
		})
	}

	effectivePath := transcriptPath
	if effectivePath == "" {
		if si, _ := sessioninfo.Load(c.RewindDir); si != nil {
			effectivePath = si.TranscriptPath
		}
	}
	if effectivePath == "" {
		return meta, nil
	}
	if _, statErr := os.Stat(effectivePath); statErr != nil {
		return meta, nil
	}

	checkpointDir := filepath.Join(c.Store.StorageDir, meta.Name)
	var snap transcript.Snapshot
	var snapErr error
	besteffort.Do(ctx, "controller.transcript_snapshot", func() error {
		snap, snapErr = c.Transcripts.SnapshotIntoCheckpoint(effectivePath, checkpointDir, "")
		return snapErr
	})
	if snapErr != nil {
		return meta, nil
	}

	cursorJSON, err := json.Marshal(snap.Cursor)
	if err != nil {
		return meta, nil
	}

	ok, err := c.Store.UpdateMetadata(meta.Name, func(m *checkpoint.Metadata) {
		m.HasTranscript = true
		m.Transcript = &checkpoint.Transcript{
			Agent:        snap.Agent,
			OriginalPath: snap.OriginalPath,
			Snapshot:     snap.SnapshotName,
			Cursor:       cursorJSON,
		}
	})
	if err != nil || !ok {
		return meta, nil
	}

	updated := c.Store.Get(meta.Name)
	if updated != nil {
		meta = *updated
	}
	return meta, nil
}

// RestoreMode selects which half(s) of a checkpoint restore applies.
type RestoreMode string

const (
	RestoreAll     RestoreMode = "all"
	RestoreCode    RestoreMode = "code"
	RestoreContext RestoreMode = "context"
)

// TranscriptRestoreStyle selects how the context half of a restore treats
// the live transcript.
type TranscriptRestoreStyle string

const (
	TranscriptFork    TranscriptRestoreStyle = "fork"
	TranscriptInPlace TranscriptRestoreStyle = "in_place"
)

// RestoreResult reports what a Restore call actually did.
type RestoreResult struct {
	Code         *checkpoint.Result
	ForkPath     string
	BackupPath   string
	ContextError error
}

// Restore restores a checkpoint's code (workspace tree), context
// (transcript), or both. A code-restore error aborts the whole operation;
// a context-restore error is reported on ContextError without undoing an
// already-applied code restore.
func (c *Controller) Restore(name string, mode RestoreMode, skipBackup bool, style TranscriptRestoreStyle) (RestoreResult, error) {
	var result RestoreResult

	if mode == RestoreAll || mode == RestoreCode {
		codeResult, err := c.Store.Restore(name, checkpoint.RestoreOptions{Backup: !skipBackup})
		if err != nil {
			return RestoreResult{}, err
		}
		result.Code = &codeResult
	}

	if mode == RestoreAll || mode == RestoreContext {
		if err := c.restoreContext(name, style, &result); err != nil {
			result.ContextError = err
		}
	}

	entry := history.Entry{Checkpoint: name}
	if result.ForkPath != "" {
		entry.Transcript = &history.TranscriptOutcome{Mode: history.ModeFork, ForkPath: result.ForkPath}
	} else if result.BackupPath != "" {
		entry.Transcript = &history.TranscriptOutcome{Mode: history.ModeInPlace, BackupPath: result.BackupPath}
	}
	if entry.Transcript != nil {
		besteffort.Do(context.Background(), "controller.restore_history", func() error {
			return history.Append(c.RewindDir, entry)
		})
	}

	return result, nil
}

func (c *Controller) restoreContext(name string, style TranscriptRestoreStyle, result *RestoreResult) error {
	meta := c.Store.Get(name)
	if meta == nil || meta.Transcript == nil {
		return nil
	}

	var cursor transcript.Cursor
	if err := json.Unmarshal(meta.Transcript.Cursor, &cursor); err != nil {
		return fmt.Errorf("decoding transcript cursor: %w", err)
	}

	currentPath := c.currentTranscriptPath(meta)
	if currentPath == "" {
		return errors.New("no transcript path available to restore context into")
	}

	switch style {
	case TranscriptFork:
		checkpointDir := filepath.Join(c.Store.StorageDir, name)
		snapshotGz := ""
		if meta.Transcript.Snapshot != "" {
			snapshotGz = filepath.Join(checkpointDir, meta.Transcript.Snapshot)
		}
		forkPath, err := c.Transcripts.CreateForkSession(cursor, snapshotGz, currentPath, "", "[Fork] ", meta.Transcript.Agent)
		if err != nil {
			return err
		}
		result.ForkPath = forkPath
		return nil
	case TranscriptInPlace:
		backupDir := filepath.Join(c.RewindDir, "transcript-backup")
		if err := os.MkdirAll(backupDir, 0o750); err != nil {
			return fmt.Errorf("creating transcript backup directory: %w", err)
		}
		if transcript.PrefixMatches(currentPath, cursor.PrefixSHA256) {
			backupPath, err := c.Transcripts.RewriteInPlaceAtOffset(currentPath, cursor.ByteOffsetEnd, backupDir)
			if err != nil {
				return err
			}
			result.BackupPath = backupPath
			return nil
		}
		// Divergent transcript: back it up, then overwrite with the
		// checkpoint's inflated snapshot rather than truncating content
		// that was never part of this checkpoint's history.
		backupPath := filepath.Join(backupDir, fmt.Sprintf("%s_inplace.jsonl", time.Now().Format("20060102_150405")))
		if err := copyFile(currentPath, backupPath); err != nil {
			return err
		}
		checkpointDir := filepath.Join(c.Store.StorageDir, name)
		if meta.Transcript.Snapshot == "" {
			return errors.New("transcript has diverged and no checkpoint snapshot is available")
		}
		tmpPath := currentPath + ".tmp"
		if err := transcript.InflateSnapshot(filepath.Join(checkpointDir, meta.Transcript.Snapshot), tmpPath); err != nil {
			return err
		}
		if err := os.Rename(tmpPath, currentPath); err != nil {
			return fmt.Errorf("renaming inflated transcript into place: %w", err)
		}
		result.BackupPath = backupPath
		return nil
	default:
		return fmt.Errorf("unknown transcript restore style: %s", style)
	}
}

// currentTranscriptPath resolves "the current transcript" from Session
// Info, falling back to the checkpoint's own recorded original_path.
func (c *Controller) currentTranscriptPath(meta *checkpoint.Metadata) string {
	if si, _ := sessioninfo.Load(c.RewindDir); si != nil && si.TranscriptPath != "" {
		return si.TranscriptPath
	}
	if meta.Transcript != nil {
		return meta.Transcript.OriginalPath
	}
	return ""
}

// Undo restores to the second-newest checkpoint (skipping backup) and
// deletes the newest.
func (c *Controller) Undo() (RestoreResult, error) {
	checkpoints, err := c.Store.List()
	if err != nil {
		return RestoreResult{}, err
	}
	if len(checkpoints) < 2 {
		return RestoreResult{}, errors.New("undo requires at least two checkpoints")
	}

	newest, second := checkpoints[0], checkpoints[1]
	result, err := c.Restore(second.Name, RestoreAll, true, TranscriptFork)
	if err != nil {
		return RestoreResult{}, err
	}
	if _, err := c.Store.Delete(newest.Name); err != nil {
		return result, fmt.Errorf("undo: deleting %s: %w", newest.Name, err)
	}
	return result, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // path resolved from session info / checkpoint metadata
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644) //nolint:gosec // transcript backup, not executable content
}
