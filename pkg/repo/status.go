package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitlet/pkg/diff"
)

var statusMarks = map[diff.Status]string{
	diff.Added:    "+",
	diff.Modified: "~",
	diff.Deleted:  "-",
}

// Status summarizes HEAD, the merge state, and the unmerged, staged,
// unstaged and untracked paths.
func (r *Repo) Status() (string, error) {
	const op = "status"
	if err := r.requireWorktree(op); err != nil {
		return "", err
	}
	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var b strings.Builder
	branch, err := r.CurrentBranch()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	head, err := r.headHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if branch != "" {
		fmt.Fprintf(&b, "On branch %s\n", branch)
	} else {
		fmt.Fprintf(&b, "HEAD detached at %s\n", head.Short())
	}
	if head == "" {
		b.WriteString("No commits yet\n")
	}
	if mh, err := r.readRef(mergeHeadFile); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	} else if mh != "" {
		b.WriteString("You are in the middle of a merge.\n")
	}

	headTree, err := r.headTree()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	headSnap, err := r.treeSnapshot(headTree)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	conflicted := idx.ConflictedPaths()
	for _, p := range conflicted {
		delete(headSnap, p)
	}
	staged := diff.Snapshots(headSnap, idx.Snapshot())
	unstaged, err := r.unstagedChanges(idx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	untracked, err := r.Worktree.Untracked(idx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if len(conflicted)+len(staged)+len(unstaged)+len(untracked) == 0 {
		b.WriteString("nothing to commit, working tree clean\n")
		return b.String(), nil
	}
	writeSection(&b, "Unmerged paths:", conflicted, "!")
	writeChanges(&b, "Changes to be committed:", staged)
	writeChanges(&b, "Changes not staged for commit:", unstaged)
	writeSection(&b, "Untracked files:", untracked, "")
	return b.String(), nil
}

func writeChanges(b *strings.Builder, title string, changes []diff.Change) {
	if len(changes) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for _, c := range changes {
		fmt.Fprintf(b, "  %s %s\n", statusMarks[c.Status], c.Path)
	}
}

func writeSection(b *strings.Builder, title string, paths []string, mark string) {
	if len(paths) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for _, p := range paths {
		if mark != "" {
			fmt.Fprintf(b, "  %s %s\n", mark, p)
		} else {
			fmt.Fprintf(b, "  %s\n", p)
		}
	}
}
