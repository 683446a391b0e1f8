// Package versioncheck periodically checks GitHub for a newer rewind
// release and surfaces a one-line notice, adapted from the teacher's
// version-check cache-and-notify design but decoupled from cobra so any
// CLI entry point can call it.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/rewindhq/rewind/internal/logging"
)

const (
	checkInterval = 24 * time.Hour
	httpTimeout   = 2 * time.Second
	cacheFileName = "version_check.json"
	githubAPIURL  = "https://api.github.com/repos/rewindhq/rewind/releases/latest"
)

// VersionCache records the last time a check was performed, so CheckAndNotify
// can skip the network round trip on most invocations.
type VersionCache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

// GitHubRelease is the subset of the GitHub releases API response this
// package consumes.
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// CheckAndNotify checks, at most once per checkInterval, whether a newer
// rewind release is available, returning a notice string to print (empty if
// none). Silent on every failure — a broken network or GitHub outage must
// never interrupt a checkpoint/restore/rewind invocation.
func CheckAndNotify(ctx context.Context, globalConfigDir, currentVersion string) string {
	if currentVersion == "" || currentVersion == "dev" {
		return ""
	}
	if err := os.MkdirAll(globalConfigDir, 0o750); err != nil {
		return ""
	}

	cachePath := filepath.Join(globalConfigDir, cacheFileName)
	cache, err := loadCache(cachePath)
	if err != nil {
		cache = &VersionCache{}
	}
	if time.Since(cache.LastCheckTime) < checkInterval {
		return ""
	}

	latest, fetchErr := fetchLatestVersion(ctx)

	cache.LastCheckTime = time.Now()
	if err := saveCache(cachePath, cache); err != nil {
		logging.Debug(ctx, "version check: failed to save cache", "error", err.Error())
	}

	if fetchErr != nil {
		logging.Debug(ctx, "version check: failed to fetch latest version", "error", fetchErr.Error())
		return ""
	}

	if isOutdated(currentVersion, latest) {
		return fmt.Sprintf("A newer version of rewind is available: %s (current: %s)\nRun the install script again to update.", latest, currentVersion)
	}
	return ""
}

func loadCache(path string) (*VersionCache, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed from the global config directory
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var cache VersionCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}
	return &cache, nil
}

func saveCache(path string, cache *VersionCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".version_check_tmp_")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup; no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func fetchLatestVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "rewind-cli")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing JSON: %w", err)
	}
	if release.Prerelease {
		return "", errors.New("only prerelease versions available")
	}
	if release.TagName == "" {
		return "", errors.New("empty tag name")
	}
	return release.TagName, nil
}

func isOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	return semver.Compare(current, latest) < 0
}
