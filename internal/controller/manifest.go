package controller

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rewindhq/rewind/internal/checkpoint"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ManifestDiff is the result of comparing two checkpoints' archived file
// lists. It never inspects file contents — only which paths exist in each
// archive — consistent with rewind's content-diff non-goal.
type ManifestDiff struct {
	Added   []string
	Removed []string
}

// CompareManifests lists the archived relative paths of two checkpoints
// and diffs the sorted lists, reporting paths present in b but not a
// (Added) and vice versa (Removed). Used by doctor to show what a restore
// would touch without reading file bytes.
func (c *Controller) CompareManifests(nameA, nameB string) (ManifestDiff, error) {
	pathsA, err := c.archivePaths(nameA)
	if err != nil {
		return ManifestDiff{}, fmt.Errorf("reading %s manifest: %w", nameA, err)
	}
	pathsB, err := c.archivePaths(nameB)
	if err != nil {
		return ManifestDiff{}, fmt.Errorf("reading %s manifest: %w", nameB, err)
	}

	sort.Strings(pathsA)
	sort.Strings(pathsB)

	dmp := diffmatchpatch.New()
	// Every path, the last included, must end in "\n" so that equal paths
	// become equal diff lines wherever they sit in either list.
	joinLines := func(ps []string) string {
		if len(ps) == 0 {
			return ""
		}
		return strings.Join(ps, "\n") + "\n"
	}
	textA, textB, lineArray := dmp.DiffLinesToChars(joinLines(pathsA), joinLines(pathsB))
	diffs := dmp.DiffMain(textA, textB, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var added, removed []string
	for _, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		for _, line := range lines {
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				added = append(added, line)
			case diffmatchpatch.DiffDelete:
				removed = append(removed, line)
			}
		}
	}

	return ManifestDiff{Added: added, Removed: removed}, nil
}

// archivePaths reads a checkpoint's snapshot.tar.gz header names without
// extracting any file content.
func (c *Controller) archivePaths(name string) ([]string, error) {
	archivePath := filepath.Join(c.Store.StorageDir, name, checkpoint.ArchiveName)
	f, err := os.Open(archivePath) //nolint:gosec // path built from a validated checkpoint name
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var paths []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		paths = append(paths, hdr.Name)
	}
	return paths, nil
}
