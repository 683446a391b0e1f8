package controller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewindhq/rewind/internal/checkpoint"
	"github.com/rewindhq/rewind/internal/sessioninfo"
)

// Status summarizes the state of a project's checkpoint storage.
type Status struct {
	CheckpointCount int
	StorageDir      string
	StorageMode     string
	Tier            string
	Agent           string
	Newest          *checkpoint.Metadata
	Issues          []string
}

// GetStatus enumerates checkpoints and reports summary counts alongside
// the resolved tier and active agent, without checking archive integrity.
func (c *Controller) GetStatus(storageMode string) (Status, error) {
	checkpoints, err := c.Store.List()
	if err != nil {
		return Status{}, err
	}

	status := Status{
		CheckpointCount: len(checkpoints),
		StorageDir:      c.Store.StorageDir,
		StorageMode:     storageMode,
		Tier:            c.Tier.Tier,
	}
	if len(checkpoints) > 0 {
		status.Newest = &checkpoints[0]
	}
	if si, _ := sessioninfo.Load(c.RewindDir); si != nil {
		status.Agent = si.Agent
	}
	return status, nil
}

// ValidateSystem performs the same enumeration as GetStatus but also
// checks each checkpoint's on-disk invariants: that its archive exists,
// and (when the metadata claims one) that its transcript snapshot exists.
// It never touches archive or transcript contents.
func (c *Controller) ValidateSystem() (Status, error) {
	status, err := c.GetStatus("")
	if err != nil {
		return Status{}, err
	}

	if _, err := os.Stat(c.Store.StorageDir); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("storage directory missing: %v", err))
		return status, nil
	}

	checkpoints, err := c.Store.List()
	if err != nil {
		return status, err
	}
	for _, cp := range checkpoints {
		dir := filepath.Join(c.Store.StorageDir, cp.Name)
		archivePath := filepath.Join(dir, checkpoint.ArchiveName)
		if _, err := os.Stat(archivePath); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("%s: missing archive", cp.Name))
			continue
		}
		if cp.HasTranscript && cp.Transcript != nil && cp.Transcript.Snapshot != "" {
			snapshotPath := filepath.Join(dir, cp.Transcript.Snapshot)
			if _, err := os.Stat(snapshotPath); err != nil {
				status.Issues = append(status.Issues, fmt.Sprintf("%s: missing transcript snapshot", cp.Name))
			}
		}
	}

	return status, nil
}
