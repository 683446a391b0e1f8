package versioncheck

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestIsOutdatedComparesSemver(t *testing.T) {
	cases := []struct {
		current, latest string
		want             bool
	}{
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "1.1.0", true},
		{"1.2.0", "1.1.0", false},
		{"v1.0.0", "1.1.0", true},
	}
	for _, tc := range cases {
		if got := isOutdated(tc.current, tc.latest); got != tc.want {
			t.Errorf("isOutdated(%q, %q) = %v, want %v", tc.current, tc.latest, got, tc.want)
		}
	}
}

func TestSaveThenLoadCacheRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, cacheFileName)
	now := time.Now().Truncate(time.Second)

	if err := saveCache(path, &VersionCache{LastCheckTime: now}); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	cache, err := loadCache(path)
	if err != nil {
		t.Fatalf("loadCache: %v", err)
	}
	if !cache.LastCheckTime.Equal(now) {
		t.Errorf("LastCheckTime = %v, want %v", cache.LastCheckTime, now)
	}
}

func TestCheckAndNotifySkipsDevVersion(t *testing.T) {
	dir := t.TempDir()
	if notice := CheckAndNotify(context.Background(), dir, "dev"); notice != "" {
		t.Errorf("expected no notice for dev version, got %q", notice)
	}
	if notice := CheckAndNotify(context.Background(), dir, ""); notice != "" {
		t.Errorf("expected no notice for empty version, got %q", notice)
	}
}

func TestCheckAndNotifySkipsWithinCheckInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, cacheFileName)
	if err := saveCache(path, &VersionCache{LastCheckTime: time.Now()}); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	// A recent cache entry means CheckAndNotify returns without attempting
	// a network call, regardless of what CheckAndNotify.version compares to.
	if notice := CheckAndNotify(context.Background(), dir, "1.0.0"); notice != "" {
		t.Errorf("expected no notice when within the check interval, got %q", notice)
	}
}
