package repo

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/merge"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Merge integrates ref into HEAD. Histories where one side contains the
// other are settled as up to date or by fast-forward; otherwise the trees
// are merged against the merge base. A clean three-way merge commits at
// once; conflicts leave the repository in merge state with the conflicted
// paths staged at stages 1-3.
func (r *Repo) Merge(ref string) (string, error) {
	const op = "merge"
	if err := r.requireWorktree(op); err != nil {
		return "", err
	}
	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if conflicted := idx.ConflictedPaths(); len(conflicted) > 0 {
		return "", newError(ErrUnresolvedConflicts, op).withPaths(conflicted)
	}

	theirs, theirCommit, err := r.resolveCommit(op, ref)
	if err != nil {
		return "", err
	}
	head, err := r.headHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if head != "" {
		upToDate, err := r.isAncestor(theirs, head)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if upToDate {
			return "Already up-to-date", nil
		}
	}

	if paths, err := r.wouldOverwrite(idx, theirs); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	} else if len(paths) > 0 {
		return "", newError(ErrWouldOverwriteLocalChanges, op).withRef(ref).withPaths(paths)
	}

	fastForward := head == ""
	if !fastForward {
		if fastForward, err = r.isAncestor(head, theirs); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	if fastForward {
		if err := r.switchTo(idx, theirCommit.TreeHash); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if err := r.advanceHead(theirs, head, "merge "+ref+": Fast-forward"); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		r.log.Debug("merge fast-forward", slog.String("ref", ref), slog.String("to", string(theirs)))
		return "Fast-forward", nil
	}

	return r.mergeThreeWay(op, ref, idx, head, theirs, theirCommit)
}

func (r *Repo) mergeThreeWay(op, ref string, idx *index.Index, head, theirs object.Hash, theirCommit *object.CommitObj) (string, error) {
	base, err := r.MergeBase(head, theirs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var baseTree object.Hash
	if base != "" {
		bc, err := r.Store.ReadCommit(base)
		if err != nil {
			return "", fmt.Errorf("%s: read merge base: %w", op, err)
		}
		baseTree = bc.TreeHash
	}
	headTree, err := r.headTree()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	cfg, err := r.Config()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	style, err := merge.ParseStyle(cfg.Merge.ConflictStyle)
	if err != nil {
		return "", newError(ErrInvalidArgument, op).wrap(err)
	}
	result, err := merge.Trees(r.Store, baseTree, headTree, theirCommit.TreeHash, merge.Options{Style: style, Logger: r.log})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	r.log.Debug("three-way merge",
		slog.String("base", string(base)),
		slog.String("ours", string(head)),
		slog.String("theirs", string(theirs)),
		slog.Int("conflicts", len(result.Conflicts)))

	desc, err := r.headDescription()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	message := fmt.Sprintf("Merge %s into %s", ref, desc)
	if err := writeFileAtomic(r.Meta, mergeHeadFile, []byte(string(theirs)+"\n")); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := writeFileAtomic(r.Meta, mergeMsgFile, []byte(message+"\n")); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	touched, err := r.applyMergeResult(result, headTree)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	headSnap, err := r.treeSnapshot(headTree)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	next := result.Index()
	carryStaged(next, idx, headSnap, touched)
	if err := r.writeIndex(next); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if len(result.Conflicts) > 0 {
		var b strings.Builder
		for _, p := range result.ConflictedPaths() {
			fmt.Fprintf(&b, "CONFLICT (content): Merge conflict in %s\n", p)
		}
		b.WriteString("Automatic merge failed; fix conflicts and then commit the result.")
		return b.String(), nil
	}

	author, err := r.resolveAuthor("")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	h, err := r.writeCommit(result.TreeHash, []object.Hash{head, theirs}, author, message, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := r.advanceHead(h, head, "merge "+ref+": Merge made by the three-way strategy"); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := r.clearMergeState(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return "Merge made by the three-way strategy", nil
}

// applyMergeResult writes the merged entries into the working copy and the
// conflict contents over conflicted paths. It returns every path touched.
func (r *Repo) applyMergeResult(result *merge.Result, headTree object.Hash) (map[string]bool, error) {
	conflicted := make(map[string]bool, len(result.Conflicts))
	for _, c := range result.Conflicts {
		conflicted[c.Path] = true
	}

	headSnap, err := r.treeSnapshot(headTree)
	if err != nil {
		return nil, err
	}
	before := make(diff.Snapshot, len(headSnap))
	for p, st := range headSnap {
		if !conflicted[p] {
			before[p] = st
		}
	}
	after := make(diff.Snapshot, len(result.Entries))
	for _, e := range result.Entries {
		after[e.Path] = index.FileState{Hash: e.BlobHash, Mode: e.Mode}
	}

	changes := diff.Snapshots(before, after)
	if _, err := r.Worktree.Apply(r.Store, changes); err != nil {
		return nil, err
	}
	touched := make(map[string]bool, len(changes)+len(conflicted))
	for _, p := range diff.Paths(changes) {
		touched[p] = true
	}
	for _, c := range result.Conflicts {
		if err := r.Worktree.WriteFile(c.Path, c.Content, c.Mode); err != nil {
			return nil, err
		}
		r.log.Debug("conflict written", slog.String("path", c.Path))
		touched[c.Path] = true
	}
	return touched, nil
}
