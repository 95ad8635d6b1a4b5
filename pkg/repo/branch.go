package repo

import (
	"errors"
	"fmt"
	"strings"
)

// Branch lists the local branches when name is empty, marking the current
// one with "*". Otherwise it creates branch name at HEAD's commit.
func (r *Repo) Branch(name string) (string, error) {
	const op = "branch"
	if name == "" {
		return r.listBranches()
	}
	if !validBranchName(name) {
		return "", newError(ErrInvalidArgument, op).withRef(name).wrap(fmt.Errorf("not a valid branch name"))
	}

	head, err := r.headHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if head == "" {
		current, _ := r.CurrentBranch()
		return "", newError(ErrRefNotFound, op).withRef(current)
	}

	ref := branchRef(name)
	existing, err := r.readRef(ref)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if existing != "" {
		return "", newError(ErrRefUpdateConflict, op).withRef(name).wrap(fmt.Errorf("a branch named %q already exists", name))
	}
	if err := r.UpdateRefCAS(ref, head, "", "branch: created from "+head.Short()); err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Op = op
		}
		return "", err
	}
	return "", nil
}

func (r *Repo) listBranches() (string, error) {
	names, err := r.ListBranches()
	if err != nil {
		return "", err
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return "", fmt.Errorf("branch: %w", err)
	}
	var b strings.Builder
	for _, n := range names {
		if n == current {
			b.WriteString("* ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(n)
		b.WriteString("\n")
	}
	return b.String(), nil
}
