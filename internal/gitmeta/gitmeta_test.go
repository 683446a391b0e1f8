package gitmeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestLookupReturnsNilOutsideGitRepo(t *testing.T) {
	dir := t.TempDir()
	if info := Lookup(dir); info != nil {
		t.Errorf("expected nil for a non-git directory, got %+v", info)
	}
}

func TestLookupReturnsBranchAndCommit(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hash, err := wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com"},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	info := Lookup(dir)
	if info == nil {
		t.Fatalf("expected non-nil Info for a git repository with a commit")
	}
	if info.Commit != hash.String() {
		t.Errorf("Commit = %q, want %q", info.Commit, hash.String())
	}
	if info.Branch == "" {
		t.Errorf("expected a non-empty branch name")
	}
}

func TestLookupReturnsNilForEmptyRepoFromSubdir(t *testing.T) {
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	sub := filepath.Join(root, "nested", "deeper")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// An empty repo (no commits) has no resolvable HEAD; Lookup should
	// still not panic and should simply report nil.
	if info := Lookup(sub); info != nil {
		t.Errorf("expected nil for an empty repository, got %+v", info)
	}
}
