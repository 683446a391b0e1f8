// Package checkpoint implements the on-disk checkpoint store: creating,
// listing, restoring, deleting, and pruning project tree snapshots plus
// their metadata sidecars. A Store is stateless between calls; its
// storage directory and project root are fixed at construction.
package checkpoint

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/jsonutil"
)

// Archive and metadata sidecar file names within a checkpoint directory.
const (
	ArchiveName  = "snapshot.tar.gz"
	MetadataName = "metadata.json"
)

// nameLayout is the time.Format layout for the date/time portion of a
// checkpoint directory name; milliseconds are appended separately since Go's
// reference-time fractional-second directive cannot use "_" as a separator.
const nameLayout = "20060102_150405"

// maxNameCollisionRetries bounds the millisecond-advance retry loop in
// Create, documenting the Open Question resolution: near-simultaneous
// checkpoints advance the clock by a millisecond rather than failing
// outright, up to roughly one second of slack.
const maxNameCollisionRetries = 1000

// Transcript mirrors the transcript sub-object attached to Checkpoint
// Metadata once a transcript snapshot has been taken. Cursor is defined in
// the transcript package; it is embedded here as raw JSON to avoid an
// import cycle, and decoded by callers that need structured access.
type Transcript struct {
	Agent        string          `json:"agent"`
	OriginalPath string          `json:"original_path"`
	Snapshot     string          `json:"snapshot"`
	Cursor       json.RawMessage `json:"cursor"`
}

// Metadata is the Checkpoint Metadata record described in the data model.
type Metadata struct {
	Name          string      `json:"name"`
	Timestamp     string      `json:"timestamp"`
	Description   string      `json:"description"`
	FileCount     int         `json:"fileCount"`
	TotalSize     int64       `json:"totalSize"`
	SessionID     *string     `json:"sessionId"`
	HasTranscript bool        `json:"hasTranscript"`
	Transcript    *Transcript `json:"transcript,omitempty"`
	Git           *GitInfo    `json:"git,omitempty"`
}

// GitInfo is a best-effort, purely descriptive enrichment of Metadata: the
// branch and commit of the project root at checkpoint time, when it is a
// git repository. Absence of this field does not indicate an error.
type GitInfo struct {
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// Result is the structured outcome of Restore.
type Result struct {
	Success   bool
	Name      string
	FileCount int
	Error     error
}

// Store manages checkpoint storage and retrieval under StorageDir, capturing
// snapshots of ProjectRoot filtered by Matcher.
type Store struct {
	StorageDir  string
	ProjectRoot string
	Matcher     *ignore.Matcher

	// now is overridable in tests that need deterministic or colliding
	// timestamps; defaults to time.Now.
	now func() time.Time
}

// New constructs a Store, ensuring storageDir exists.
func New(storageDir, projectRoot string, matcher *ignore.Matcher) (*Store, error) {
	if matcher == nil {
		matcher = ignore.New(ignore.DefaultConfig())
	}
	if err := os.MkdirAll(storageDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating checkpoint storage directory: %w", err)
	}
	return &Store{
		StorageDir:  storageDir,
		ProjectRoot: projectRoot,
		Matcher:     matcher,
		now:         time.Now,
	}, nil
}

// StoreError wraps a failure in an archive, metadata, or extraction
// operation. It is fatal to the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("checkpoint store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// Create builds a new checkpoint: a gzip-compressed tar of every
// non-ignored file under ProjectRoot, plus a metadata.json sidecar.
// Creation is atomic by last-step write: on any failure the partial
// checkpoint directory is removed and the error is surfaced.
func (s *Store) Create(description string, sessionID *string) (Metadata, error) {
	name, dir, err := s.reserveName()
	if err != nil {
		return Metadata{}, storeErr("reserve name", err)
	}

	meta, err := s.createAt(name, dir, description, sessionID)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Metadata{}, err
	}
	return meta, nil
}

// reserveName picks a not-yet-existing checkpoint directory name, retrying
// with the timestamp advanced by one millisecond on collision.
func (s *Store) reserveName() (name, dir string, err error) {
	t := s.now()
	for range maxNameCollisionRetries {
		candidate := fmt.Sprintf("%s_%03d", t.Format(nameLayout), t.Nanosecond()/1_000_000)
		candidateDir := filepath.Join(s.StorageDir, candidate)
		if _, statErr := os.Stat(candidateDir); os.IsNotExist(statErr) {
			if mkErr := os.MkdirAll(candidateDir, 0o750); mkErr != nil {
				return "", "", fmt.Errorf("creating checkpoint directory: %w", mkErr)
			}
			return candidate, candidateDir, nil
		}
		t = t.Add(time.Millisecond)
	}
	return "", "", errors.New("exhausted millisecond-collision retries reserving a checkpoint name")
}

func (s *Store) createAt(name, dir, description string, sessionID *string) (Metadata, error) {
	files, err := s.collectFiles()
	if err != nil {
		return Metadata{}, storeErr("walk project tree", err)
	}
	if len(files) == 0 {
		return Metadata{}, storeErr("collect files", errors.New("No files to checkpoint"))
	}

	archivePath := filepath.Join(dir, ArchiveName)
	totalSize, err := writeArchive(archivePath, s.ProjectRoot, files)
	if err != nil {
		return Metadata{}, storeErr("write archive", err)
	}

	meta := Metadata{
		Name:        name,
		Timestamp:   timestampFromName(name),
		Description: description,
		FileCount:   len(files),
		TotalSize:   totalSize,
		SessionID:   sessionID,
	}

	if err := writeMetadata(filepath.Join(dir, MetadataName), meta); err != nil {
		return Metadata{}, storeErr("write metadata", err)
	}

	return meta, nil
}

// timestampFromName renders an ISO-8601-ish local timestamp for a
// checkpoint directory name of the form YYYYMMDD_HHMMSS_mmm.
func timestampFromName(name string) string {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return name
	}
	datePart, msPart := name[:idx], name[idx+1:]
	t, err := time.ParseInLocation(nameLayout, datePart, time.Local)
	if err != nil {
		return name
	}
	var ms int
	if _, err := fmt.Sscanf(msPart, "%03d", &ms); err != nil {
		return t.Format("2006-01-02T15:04:05.000-07:00")
	}
	t = t.Add(time.Duration(ms) * time.Millisecond)
	return t.Format("2006-01-02T15:04:05.000-07:00")
}

func writeMetadata(path string, meta Metadata) error {
	data, err := jsonutil.MarshalIndentWithNewline(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return writeFileAtomic(path, data, 0o600)
}

// writeFileAtomic writes data to a temp file in the same directory as path
// and renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup; no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// collectFiles walks ProjectRoot depth-first, pruning ignored directories
// so their contents are never traversed, and returns the project-relative
// paths of every non-ignored regular file.
func (s *Store) collectFiles() ([]string, error) {
	var files []string
	root := s.ProjectRoot

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			rel, err := filepath.Rel(root, full)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if entry.IsDir() {
				if s.Matcher.ShouldIgnore(rel) {
					continue
				}
				if err := walk(full); err != nil {
					return err
				}
				continue
			}

			if entry.Type()&os.ModeSymlink != 0 {
				// Symlinks are neither followed nor archived directly;
				// skip them rather than risk escaping the project root.
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			if s.Matcher.ShouldIgnore(rel) {
				continue
			}
			files = append(files, rel)
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return files, nil
}

// writeArchive builds a gzip-compressed tar at archivePath containing each
// relPath under projectRoot, and returns the sum of uncompressed file sizes.
func writeArchive(archivePath, projectRoot string, relPaths []string) (int64, error) {
	f, err := os.Create(archivePath) //nolint:gosec // archivePath is constructed from a validated checkpoint name
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	var totalSize int64
	for _, rel := range relPaths {
		full := filepath.Join(projectRoot, rel)
		info, err := os.Lstat(full)
		if err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return 0, fmt.Errorf("stat %s: %w", rel, err)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return 0, fmt.Errorf("building tar header for %s: %w", rel, err)
		}
		hdr.Name = rel

		if err := tw.WriteHeader(hdr); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return 0, fmt.Errorf("writing tar header for %s: %w", rel, err)
		}

		if err := copyFileInto(tw, full); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return 0, fmt.Errorf("copying %s into archive: %w", rel, err)
		}
		totalSize += info.Size()
	}

	if err := tw.Close(); err != nil {
		_ = gz.Close()
		return 0, fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("closing gzip writer: %w", err)
	}
	return totalSize, nil
}

func copyFileInto(w io.Writer, path string) error {
	src, err := os.Open(path) //nolint:gosec // path built from a walked project tree
	if err != nil {
		return err
	}
	defer src.Close()
	buf := make([]byte, 1<<20)
	_, err = io.CopyBuffer(w, src, buf)
	return err
}
