package checkpoint

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// List enumerates immediate subdirectories of StorageDir that contain a
// metadata.json, sorted by name descending (newest first). A directory
// whose metadata.json is missing is skipped (see Metadata-last atomicity);
// one whose metadata.json exists but fails to parse yields a minimal
// record instead of an error.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.StorageDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("list", err)
	}

	var out []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaPath := filepath.Join(s.StorageDir, entry.Name(), MetadataName)
		data, err := os.ReadFile(metaPath) //nolint:gosec // path built from storage dir + directory entry
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			out = append(out, minimalMetadata(entry.Name()))
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			out = append(out, minimalMetadata(entry.Name()))
			continue
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func minimalMetadata(name string) Metadata {
	return Metadata{Name: name, Timestamp: name}
}

// Get returns the metadata for a single checkpoint, or nil if it doesn't
// exist or its metadata.json is unreadable/corrupt.
func (s *Store) Get(name string) *Metadata {
	metaPath := filepath.Join(s.StorageDir, name, MetadataName)
	data, err := os.ReadFile(metaPath) //nolint:gosec // path built from storage dir + validated name
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

// Delete recursively removes a checkpoint directory. Returns whether it
// existed.
func (s *Store) Delete(name string) (bool, error) {
	dir := filepath.Join(s.StorageDir, name)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, storeErr("delete", err)
	}
	return true, nil
}

// Prune keeps the keep newest checkpoints and deletes the rest, returning
// the number deleted.
func (s *Store) Prune(keep int) (int, error) {
	checkpoints, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(checkpoints) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, cp := range checkpoints[keep:] {
		ok, err := s.Delete(cp.Name)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// UpdateMetadata reads a checkpoint's metadata, applies fn to mutate it,
// and rewrites metadata.json. Returns false if the checkpoint has no
// existing metadata.
func (s *Store) UpdateMetadata(name string, fn func(*Metadata)) (bool, error) {
	meta := s.Get(name)
	if meta == nil {
		return false, nil
	}
	fn(meta)
	path := filepath.Join(s.StorageDir, name, MetadataName)
	if err := writeMetadata(path, *meta); err != nil {
		return false, storeErr("update metadata", err)
	}
	return true, nil
}

// RestoreOptions configures Restore.
type RestoreOptions struct {
	// Backup, when true, creates a fresh checkpoint (description
	// "Backup before restore to <name>") before extracting.
	Backup bool
	// Mirror, when true, additionally deletes workspace files that have
	// no counterpart in the archive (excluding ignored paths). Off by
	// default: restore is normally additive-only, since the archive plus
	// ignore matcher cannot distinguish "removed on purpose" from
	// "always ignored".
	Mirror bool
}

// Restore extracts a checkpoint's archive into ProjectRoot. Existing files
// are overwritten; files present in the workspace but absent from the
// archive are left alone unless opts.Mirror is set.
func (s *Store) Restore(name string, opts RestoreOptions) (Result, error) {
	archivePath := filepath.Join(s.StorageDir, name, ArchiveName)
	if _, err := os.Stat(archivePath); errors.Is(err, fs.ErrNotExist) {
		return Result{}, storeErr("restore", fmt.Errorf("checkpoint not found: %s", name))
	}

	if opts.Backup {
		if _, err := s.Create(fmt.Sprintf("Backup before restore to %s", name), nil); err != nil {
			return Result{}, storeErr("restore backup", err)
		}
	}

	tmpDir, err := os.MkdirTemp("", "rewind-restore-*")
	if err != nil {
		return Result{}, storeErr("restore", err)
	}
	defer os.RemoveAll(tmpDir)

	extracted, err := extractArchive(archivePath, tmpDir)
	if err != nil {
		return Result{}, storeErr("extract archive", err)
	}

	fileCount := 0
	for _, rel := range extracted {
		src := filepath.Join(tmpDir, rel)
		dst := filepath.Join(s.ProjectRoot, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return Result{}, storeErr("restore", err)
		}
		if err := copyFilePreserve(src, dst); err != nil {
			return Result{}, storeErr("restore", err)
		}
		fileCount++
	}

	if opts.Mirror {
		if err := s.mirrorDelete(extracted); err != nil {
			return Result{}, storeErr("mirror delete", err)
		}
	}

	return Result{Success: true, Name: name, FileCount: fileCount}, nil
}

// mirrorDelete removes files under ProjectRoot that are neither in
// extracted (the archive's manifest) nor ignored.
func (s *Store) mirrorDelete(extracted []string) error {
	present := make(map[string]bool, len(extracted))
	for _, rel := range extracted {
		present[rel] = true
	}

	var toDelete []string
	err := filepath.WalkDir(s.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.ProjectRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if s.Matcher.ShouldIgnore(rel) {
			return nil
		}
		if !present[rel] {
			toDelete = append(toDelete, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, path := range toDelete {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// extractArchive extracts a tar.gz into destDir, rejecting any entry whose
// normalized path would escape destDir and sanitizing link/device entries,
// and returns the list of extracted regular-file relative paths.
func extractArchive(archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath) //nolint:gosec // archivePath constructed from a validated checkpoint name
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
	var extracted []string

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rel := filepath.FromSlash(hdr.Name)
		destPath := filepath.Join(destDir, rel)
		if !isWithin(destDir, destPath) {
			return nil, fmt.Errorf("archive entry %q escapes extraction root", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o750); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
				return nil, err
			}
			out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileModeOrDefault(hdr.FileInfo().Mode()))
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // tar entries bounded by archive size; no decompression-bomb protection beyond path-traversal checks here
				_ = out.Close()
				return nil, err
			}
			if err := out.Close(); err != nil {
				return nil, err
			}
			extracted = append(extracted, filepath.ToSlash(rel))
		case tar.TypeSymlink, tar.TypeLink:
			// Reject link entries outright rather than recreate them:
			// a symlink target is attacker-controlled archive content
			// and the store never needs to restore links.
			continue
		default:
			// Device, fifo, and other special entries are never restored.
			continue
		}
	}

	return extracted, nil
}

func fileModeOrDefault(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return 0o644
	}
	return perm
}

// isWithin reports whether candidate, once cleaned, is equal to base or
// nested under it — guarding against ".." path-traversal in archive names.
func isWithin(base, candidate string) bool {
	base = filepath.Clean(base)
	candidate = filepath.Clean(candidate)
	if candidate == base {
		return true
	}
	return strings.HasPrefix(candidate, base+string(os.PathSeparator))
}

// copyFilePreserve copies src to dst, overwriting dst if present, and
// best-effort preserves the source file's mode.
func copyFilePreserve(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // src is within a freshly created extraction temp dir
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Close()
}
