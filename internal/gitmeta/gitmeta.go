// Package gitmeta attaches a best-effort git branch/commit snapshot to
// Checkpoint Metadata. It never fails a checkpoint: if the project root
// isn't a git repository, or HEAD can't be resolved (empty repo, corrupt
// .git), Lookup simply returns nil. A detached HEAD yields an Info with an
// empty Branch. Retargeted from the teacher's
// git shadow-branch checkpoint mechanism (which stores checkpoints as git
// commits) to a read-only enrichment, since rewind's own checkpoint store
// is tar.gz-based rather than git-based.
package gitmeta

import (
	"github.com/go-git/go-git/v5"
)

// Info is the branch and commit hash of a repository at lookup time.
type Info struct {
	Branch string
	Commit string
}

// Lookup opens the git repository at projectRoot (if any) and reads its
// current branch and HEAD commit. Returns nil, not an error, for anything
// short of success — checkpoint creation must never depend on the project
// being a git repository.
func Lookup(projectRoot string) *Info {
	repo, err := git.PlainOpenWithOptions(projectRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil
	}

	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	return &Info{Branch: branch, Commit: head.Hash().String()}
}
