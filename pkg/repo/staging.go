package repo

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/worktree"
)

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// Force removes files even when they have unstaged or staged changes.
	Force bool
	// Recursive allows removing every tracked file below a directory.
	Recursive bool
}

func (o RemoveOptions) validate() error { return nil }

// Add stages every file at or below pattern: its content is written as a
// blob and the stage-0 entry replaced, which also resolves a conflict on
// the path. Tracked files below pattern that are gone from disk are
// unstaged.
func (r *Repo) Add(pattern string) (string, error) {
	const op = "add"
	if err := r.requireWorktree(op); err != nil {
		return "", err
	}
	p := worktree.CleanPath(pattern)

	files, err := r.Worktree.List(p)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var gone []string
	for _, tracked := range idx.MatchingFiles(p) {
		if !r.Worktree.Exists(tracked) || r.Worktree.IsDir(tracked) {
			gone = append(gone, tracked)
		}
	}
	if len(files) == 0 && len(gone) == 0 {
		return "", newError(ErrNoMatchingPath, op).withPath(pattern)
	}

	for _, f := range files {
		if strings.ContainsAny(f, "\n\t") {
			return "", newError(ErrInvalidArgument, op).withPath(f).
				wrap(fmt.Errorf("path contains a tab or newline"))
		}
		if err := r.stageFile(idx, f); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	idx.RemoveShadowed(files)
	for _, g := range gone {
		idx.Remove(g)
		r.log.Debug("unstaged missing file", slog.String("path", g))
	}
	if err := r.writeIndex(idx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return "", nil
}

// stageFile stores the current content of p and records it at stage 0.
func (r *Repo) stageFile(idx *index.Index, p string) error {
	data, err := r.Worktree.ReadFile(p)
	if err != nil {
		return fmt.Errorf("read %q: %w", p, err)
	}
	st, err := r.Worktree.HashFile(p)
	if err != nil {
		return fmt.Errorf("stat %q: %w", p, err)
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", p, err)
	}
	idx.Add(p, h, st.Mode)
	r.log.Debug("staged", slog.String("path", p), slog.String("hash", string(h)))
	return nil
}

// Remove unstages the tracked files at or below pattern and deletes them
// from the working copy. A directory needs Recursive; files whose working
// or staged content differs from HEAD need Force.
func (r *Repo) Remove(pattern string, opts RemoveOptions) (string, error) {
	const op = "rm"
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := r.requireWorktree(op); err != nil {
		return "", err
	}
	p := worktree.CleanPath(pattern)

	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	paths := idx.MatchingFiles(p)
	if len(paths) == 0 {
		return "", newError(ErrNoMatchingPath, op).withPath(pattern)
	}
	if !opts.Recursive && (len(paths) > 1 || paths[0] != p) {
		return "", newError(ErrUnsafeRemoval, op).withPath(pattern).
			wrap(fmt.Errorf("not removing recursively without -r"))
	}

	if !opts.Force {
		changed, err := r.changedSinceHead(idx)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		var dirty []string
		for _, tracked := range paths {
			if changed[tracked] {
				dirty = append(dirty, tracked)
			}
		}
		if len(dirty) > 0 {
			return "", newError(ErrUnsafeRemoval, op).withPaths(dirty).
				wrap(fmt.Errorf("these files have changes"))
		}
	}

	for _, tracked := range paths {
		if !r.Worktree.IsDir(tracked) {
			if err := r.Worktree.Remove(tracked); err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
		}
		idx.Remove(tracked)
	}
	if err := r.writeIndex(idx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return "", nil
}

// changedSinceHead returns the paths whose staged entry differs from HEAD
// or whose working file differs from the staged entry. A working file that
// is already gone is not a change rm needs to protect. Conflicted paths
// count as changed.
func (r *Repo) changedSinceHead(idx *index.Index) (map[string]bool, error) {
	headTree, err := r.headTree()
	if err != nil {
		return nil, err
	}
	headSnap, err := r.treeSnapshot(headTree)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for p, staged := range idx.Snapshot() {
		if h, ok := headSnap[p]; !ok || h != staged {
			out[p] = true
		}
	}
	unstaged, err := r.unstagedChanges(idx)
	if err != nil {
		return nil, err
	}
	for _, c := range unstaged {
		if c.Status != diff.Deleted {
			out[c.Path] = true
		}
	}
	for _, p := range idx.ConflictedPaths() {
		out[p] = true
	}
	return out, nil
}

// Reset restores the index entries at or below pattern to their HEAD
// versions, unstaging paths HEAD does not have. The working copy is left
// alone.
func (r *Repo) Reset(pattern string) (string, error) {
	const op = "reset"
	if err := r.requireWorktree(op); err != nil {
		return "", err
	}
	p := worktree.CleanPath(pattern)

	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	headTree, err := r.headTree()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	headIdx, err := index.FromTree(r.Store, headTree)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	targets := dedupeSorted(mergeSortedPaths(idx.MatchingFiles(p), headIdx.MatchingFiles(p)))
	if len(targets) == 0 {
		return "", newError(ErrNoMatchingPath, op).withPath(pattern)
	}
	for _, t := range targets {
		if e, ok := headIdx.Get(t, index.StageNormal); ok {
			idx.Add(t, e.BlobHash, e.Mode)
		} else {
			idx.Remove(t)
		}
	}
	if err := r.writeIndex(idx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return "", nil
}

// WriteTree writes the staged content as tree objects and returns the
// root tree hash.
func (r *Repo) WriteTree() (string, error) {
	const op = "write-tree"
	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if conflicted := idx.ConflictedPaths(); len(conflicted) > 0 {
		return "", newError(ErrUnresolvedConflicts, op).withPaths(conflicted)
	}
	h, err := idx.WriteTree(r.Store)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(h), nil
}

func mergeSortedPaths(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
