package repo

import (
	"fmt"
	"log/slog"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Checkout switches the working copy, index and HEAD to ref. A local
// branch name attaches HEAD to that branch; anything else that resolves to
// a commit detaches HEAD there. Local changes to paths the switch would
// touch abort it with ErrWouldOverwriteLocalChanges.
func (r *Repo) Checkout(ref string) (string, error) {
	const op = "checkout"
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

	target, commit, err := r.resolveCommit(op, ref)
	if err != nil {
		return "", err
	}
	isBranch, err := r.isLocalBranch(ref)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	current, err := r.CurrentBranch()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	headHash, err := r.headHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if (isBranch && ref == current) || (!isBranch && current == "" && headHash == target) {
		return "Already on " + ref, nil
	}

	if paths, err := r.wouldOverwrite(idx, target); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	} else if len(paths) > 0 {
		return "", newError(ErrWouldOverwriteLocalChanges, op).withRef(ref).withPaths(paths)
	}

	if err := r.switchTo(idx, commit.TreeHash); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	from := current
	if from == "" {
		from = headHash.Short()
	}
	reason := fmt.Sprintf("checkout: moving from %s to %s", from, ref)
	if isBranch {
		if err := r.setHead(ref, "", reason); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "Switched to branch " + ref, nil
	}
	if err := r.setHead("", target, reason); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("Note: checking out %s\nYou are in detached HEAD state.", ref), nil
}

func (r *Repo) isLocalBranch(name string) (bool, error) {
	if !validBranchName(name) {
		return false, nil
	}
	h, err := r.readRef(branchRef(name))
	if err != nil {
		return false, err
	}
	return h != "", nil
}

// switchTo reconciles the working copy from HEAD's tree to targetTree and
// rebuilds the index from targetTree. Staged changes to paths the switch
// leaves alone are carried over.
func (r *Repo) switchTo(idx *index.Index, targetTree object.Hash) error {
	headTree, err := r.headTree()
	if err != nil {
		return err
	}
	changes, err := diff.Trees(r.Store, headTree, targetTree)
	if err != nil {
		return err
	}
	applied, err := r.Worktree.Apply(r.Store, changes)
	r.log.Debug("working copy reconciled", slog.Int("changes", len(changes)), slog.Int("applied", len(applied)))
	if err != nil {
		return err
	}

	next, err := index.FromTree(r.Store, targetTree)
	if err != nil {
		return err
	}
	headSnap, err := r.treeSnapshot(headTree)
	if err != nil {
		return err
	}
	touched := make(map[string]bool, len(changes))
	for _, p := range diff.Paths(changes) {
		touched[p] = true
	}
	carryStaged(next, idx, headSnap, touched)
	return r.writeIndex(next)
}

// carryStaged copies into next the entries of cur that differ from head,
// skipping paths in touched.
func carryStaged(next, cur *index.Index, head diff.Snapshot, touched map[string]bool) {
	staged := cur.Snapshot()
	for p, st := range staged {
		if touched[p] {
			continue
		}
		if h, ok := head[p]; !ok || h != st {
			next.Add(p, st.Hash, st.Mode)
		}
	}
	for p := range head {
		if _, ok := staged[p]; !ok && !touched[p] {
			next.Remove(p)
		}
	}
}
