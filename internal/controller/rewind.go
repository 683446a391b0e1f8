package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewindhq/rewind/internal/checkpoint"
	"github.com/rewindhq/rewind/internal/sessioninfo"
	"github.com/rewindhq/rewind/internal/transcript"
)

// RewindOptions configures RewindBack.
type RewindOptions struct {
	// N is the number of user prompts to rewind past. Required, > 0.
	N int
	// Both, when true, also restores the workspace code from the newest
	// checkpoint whose recorded transcript state predates the boundary.
	Both bool
	// InPlace selects truncating the live transcript in place over
	// forking a new one.
	InPlace bool
}

// RewindResult reports what RewindBack did.
type RewindResult struct {
	BoundaryOffset int64
	Prompts        []string
	ForkPath       string
	BackupPath     string
	CodeRestored   *checkpoint.Result
	Note           string
}

// RewindBack finds the byte offset preceding the Nth-from-the-end user
// prompt in the current transcript, then rewrites the transcript (fork or
// in place) to end at that boundary, optionally also restoring the
// workspace code from whichever checkpoint last preceded it.
func (c *Controller) RewindBack(opts RewindOptions) (RewindResult, error) {
	if opts.N <= 0 {
		return RewindResult{}, errors.New("rewind_back requires n > 0")
	}

	currentPath, err := c.resolveCurrentTranscriptPath()
	if err != nil {
		return RewindResult{}, err
	}

	boundary, err := transcript.FindBoundaryByUserPrompts(currentPath, opts.N)
	if err != nil {
		return RewindResult{}, err
	}

	result := RewindResult{BoundaryOffset: boundary.BoundaryOffset, Prompts: boundary.Prompts}

	if opts.Both {
		cp, note := c.findCheckpointPrecedingBoundary(currentPath, boundary.BoundaryOffset)
		if cp != nil {
			codeResult, err := c.Store.Restore(cp.Name, checkpoint.RestoreOptions{Backup: true})
			if err != nil {
				return RewindResult{}, fmt.Errorf("rewind_back: restoring code from %s: %w", cp.Name, err)
			}
			result.CodeRestored = &codeResult
		} else {
			result.Note = note
		}
	}

	if opts.InPlace {
		backupDir := filepath.Join(c.RewindDir, "transcript-backup")
		if err := os.MkdirAll(backupDir, 0o750); err != nil {
			return RewindResult{}, fmt.Errorf("creating transcript backup directory: %w", err)
		}
		backupPath, err := c.Transcripts.RewriteInPlaceAtOffset(currentPath, boundary.BoundaryOffset, backupDir)
		if err != nil {
			return RewindResult{}, err
		}
		result.BackupPath = backupPath
	} else {
		forkPath, err := c.Transcripts.CreateForkAtOffset(currentPath, boundary.BoundaryOffset, "", "[Fork] ", c.Transcripts.DetectAgent(currentPath))
		if err != nil {
			return RewindResult{}, err
		}
		result.ForkPath = forkPath
	}

	return result, nil
}

func (c *Controller) resolveCurrentTranscriptPath() (string, error) {
	si, _ := sessioninfo.Load(c.RewindDir)
	if si == nil || si.TranscriptPath == "" {
		return "", errors.New("no current transcript is known for this project")
	}
	if _, err := os.Stat(si.TranscriptPath); err != nil {
		return "", fmt.Errorf("current transcript %s: %w", si.TranscriptPath, err)
	}
	return si.TranscriptPath, nil
}

// findCheckpointPrecedingBoundary returns the newest checkpoint whose
// recorded transcript both points at currentPath and whose cursor ends at
// or before boundaryOffset — i.e. the last checkpoint taken before the
// prompts being rewound past. Returns nil and an explanatory note if none
// qualifies.
func (c *Controller) findCheckpointPrecedingBoundary(currentPath string, boundaryOffset int64) (*checkpoint.Metadata, string) {
	checkpoints, err := c.Store.List()
	if err != nil {
		return nil, fmt.Sprintf("could not enumerate checkpoints: %v", err)
	}

	// TODO: break ties between checkpoints sharing a byte_offset_end using
	// cursor.LastEventID once two agents can interleave writes to one
	// transcript; today checkpoints against a single transcript are always
	// strictly ordered by offset, so it's unused.
	normalizedCurrent := filepath.Clean(currentPath)
	for i := range checkpoints {
		cp := &checkpoints[i]
		if cp.Transcript == nil {
			continue
		}
		if filepath.Clean(cp.Transcript.OriginalPath) != normalizedCurrent {
			continue
		}
		var cursor transcript.Cursor
		if err := json.Unmarshal(cp.Transcript.Cursor, &cursor); err != nil {
			continue
		}
		if cursor.ByteOffsetEnd <= boundaryOffset {
			return cp, ""
		}
	}
	return nil, "no checkpoint was found covering code state from before this boundary"
}
