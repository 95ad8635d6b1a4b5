package repo

import (
	"fmt"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

// DiffOptions controls Diff.
type DiffOptions struct {
	// Patch renders a unified diff instead of name-status lines.
	Patch bool
}

func (o DiffOptions) validate() error { return nil }

// Diff reports changes as name-status lines (or a patch):
//   - no refs: staged content against the working copy;
//   - ref1 only: ref1's tree against the working copy;
//   - both refs: ref1's tree against ref2's tree.
func (r *Repo) Diff(ref1, ref2 string, opts DiffOptions) (string, error) {
	const op = "diff"
	if err := opts.validate(); err != nil {
		return "", err
	}
	if ref1 == "" && ref2 != "" {
		return "", newError(ErrInvalidArgument, op).withRef(ref2).
			wrap(fmt.Errorf("second ref given without a first"))
	}
	if ref2 == "" {
		if err := r.requireWorktree(op); err != nil {
			return "", err
		}
	}

	var changes []diff.Change
	switch {
	case ref1 == "":
		wc, err := r.DiffWorkingCopyVsIndex()
		if err != nil {
			return "", err
		}
		changes = wc
	case ref2 == "":
		_, c, err := r.resolveCommit(op, ref1)
		if err != nil {
			return "", err
		}
		before, err := r.treeSnapshot(c.TreeHash)
		if err != nil {
			return "", err
		}
		idx, err := r.readIndex()
		if err != nil {
			return "", err
		}
		after, err := r.workingCopySnapshot(idx)
		if err != nil {
			return "", err
		}
		changes = diff.Snapshots(before, after)
	default:
		_, c1, err := r.resolveCommit(op, ref1)
		if err != nil {
			return "", err
		}
		_, c2, err := r.resolveCommit(op, ref2)
		if err != nil {
			return "", err
		}
		if changes, err = diff.Trees(r.Store, c1.TreeHash, c2.TreeHash); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	if !opts.Patch {
		return diff.FormatNameStatus(changes), nil
	}
	return diff.FormatPatch(changes, r.contentLoader())
}

// DiffWorkingCopyVsIndex returns the stage-0 paths whose working file
// differs from the staged entry in content or mode, or is missing.
func (r *Repo) DiffWorkingCopyVsIndex() ([]diff.Change, error) {
	if err := r.requireWorktree("diff"); err != nil {
		return nil, err
	}
	idx, err := r.readIndex()
	if err != nil {
		return nil, err
	}
	return r.unstagedChanges(idx)
}

func (r *Repo) unstagedChanges(idx *index.Index) ([]diff.Change, error) {
	staged := diff.Snapshot(idx.Snapshot())
	live := make(diff.Snapshot, len(staged))
	for p := range staged {
		st, ok, err := r.liveState(p)
		if err != nil {
			return nil, err
		}
		if ok {
			live[p] = st
		}
	}
	return diff.Snapshots(staged, live), nil
}

// ChangedFilesCommitWouldOverwrite returns the paths that differ between
// HEAD and the working copy and also between HEAD and target's tree.
func (r *Repo) ChangedFilesCommitWouldOverwrite(target object.Hash) ([]string, error) {
	idx, err := r.readIndex()
	if err != nil {
		return nil, err
	}
	return r.wouldOverwrite(idx, target)
}

func (r *Repo) wouldOverwrite(idx *index.Index, target object.Hash) ([]string, error) {
	headTree, err := r.headTree()
	if err != nil {
		return nil, err
	}
	targetTree := object.Hash("")
	if target != "" {
		c, err := r.Store.ReadCommit(target)
		if err != nil {
			return nil, err
		}
		targetTree = c.TreeHash
	}

	headSnap, err := r.treeSnapshot(headTree)
	if err != nil {
		return nil, err
	}
	wc, err := r.workingCopySnapshot(idx)
	if err != nil {
		return nil, err
	}
	local := make(map[string]bool)
	for _, p := range diff.Paths(diff.Snapshots(headSnap, wc)) {
		local[p] = true
	}

	incoming, err := diff.Trees(r.Store, headTree, targetTree)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range diff.Paths(incoming) {
		if local[p] {
			out = append(out, p)
		}
	}
	return dedupeSorted(out), nil
}

// workingCopySnapshot hashes the on-disk content of every path the index
// knows. Files missing on disk are left out; untracked files are ignored.
func (r *Repo) workingCopySnapshot(idx *index.Index) (diff.Snapshot, error) {
	out := make(diff.Snapshot)
	for _, p := range idx.Paths() {
		st, ok, err := r.liveState(p)
		if err != nil {
			return nil, err
		}
		if ok {
			out[p] = st
		}
	}
	return out, nil
}

func (r *Repo) liveState(p string) (index.FileState, bool, error) {
	if !r.Worktree.Exists(p) || r.Worktree.IsDir(p) {
		return index.FileState{}, false, nil
	}
	st, err := r.Worktree.HashFile(p)
	if err != nil {
		if isNotExist(err) {
			return index.FileState{}, false, nil
		}
		return index.FileState{}, false, fmt.Errorf("hash %q: %w", p, err)
	}
	return st, true, nil
}

// headTree returns HEAD's tree hash, "" on an unborn branch.
func (r *Repo) headTree() (object.Hash, error) {
	h, err := r.headHash()
	if err != nil || h == "" {
		return "", err
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", fmt.Errorf("read HEAD commit: %w", err)
	}
	return c.TreeHash, nil
}

func (r *Repo) treeSnapshot(tree object.Hash) (diff.Snapshot, error) {
	entries, err := index.Flatten(r.Store, tree)
	if err != nil {
		return nil, err
	}
	out := make(diff.Snapshot, len(entries))
	for _, e := range entries {
		out[e.Path] = index.FileState{Hash: e.BlobHash, Mode: e.Mode}
	}
	return out, nil
}

// contentLoader reads stored blobs, falling back to the working file for
// content that was never staged.
func (r *Repo) contentLoader() diff.ContentFunc {
	blobs := diff.BlobContent(r.Store)
	return func(p string, st index.FileState) ([]byte, error) {
		if r.Store.Has(st.Hash) || r.Worktree == nil {
			return blobs(p, st)
		}
		return r.Worktree.ReadFile(p)
	}
}

func dedupeSorted(paths []string) []string {
	if len(paths) < 2 {
		return paths
	}
	out := paths[:1]
	for _, p := range paths[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
