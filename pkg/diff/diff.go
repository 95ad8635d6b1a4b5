// Package diff compares trees and flat snapshots of staged files, producing
// path-level changes.
package diff

import (
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Status classifies what happened to a path between two snapshots.
type Status int

const (
	Added    Status = iota // path only exists on the after side
	Modified               // content or mode changed
	Deleted                // path only exists on the before side
)

// String returns the single-letter name-status code.
func (s Status) String() string {
	switch s {
	case Added:
		return "A"
	case Modified:
		return "M"
	case Deleted:
		return "D"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Change is one changed path. Before is nil for Added, After is nil for
// Deleted.
type Change struct {
	Path   string
	Status Status
	Before *index.FileState
	After  *index.FileState
}

// Snapshot maps repository-relative paths to the content staged for them.
type Snapshot map[string]index.FileState

// TreeReader is the subset of the object store Trees needs.
type TreeReader interface {
	ReadTree(h object.Hash) (*object.TreeObj, error)
}

// Snapshots compares two flat snapshots.
func Snapshots(a, b Snapshot) []Change {
	var changes []Change
	for p, before := range a {
		after, ok := b[p]
		if !ok {
			changes = append(changes, Change{Path: p, Status: Deleted, Before: &before})
			continue
		}
		if before != after {
			changes = append(changes, Change{Path: p, Status: Modified, Before: &before, After: &after})
		}
	}
	for p, after := range b {
		if _, ok := a[p]; ok {
			continue
		}
		changes = append(changes, Change{Path: p, Status: Added, After: &after})
	}
	sortChanges(changes)
	return changes
}

// Trees compares the trees a and b recursively. Subtrees with equal hashes
// are skipped without being read. An empty hash is the empty tree.
func Trees(store TreeReader, a, b object.Hash) ([]Change, error) {
	var changes []Change
	if err := diffTrees(store, a, b, "", &changes); err != nil {
		return nil, err
	}
	sortChanges(changes)
	return changes, nil
}

func diffTrees(store TreeReader, a, b object.Hash, prefix string, out *[]Change) error {
	if a == b {
		return nil
	}
	ta, err := store.ReadTree(a)
	if err != nil {
		return fmt.Errorf("diff trees: read %s: %w", a, err)
	}
	tb, err := store.ReadTree(b)
	if err != nil {
		return fmt.Errorf("diff trees: read %s: %w", b, err)
	}

	before := make(map[string]object.TreeEntry, len(ta.Entries))
	for _, e := range ta.Entries {
		before[e.Name] = e
	}
	after := make(map[string]object.TreeEntry, len(tb.Entries))
	for _, e := range tb.Entries {
		after[e.Name] = e
	}

	for name, ea := range before {
		full := join(prefix, name)
		eb, ok := after[name]
		switch {
		case !ok:
			if err := emitSide(store, ea, full, Deleted, out); err != nil {
				return err
			}
		case ea.IsDir() && eb.IsDir():
			if err := diffTrees(store, ea.Hash, eb.Hash, full, out); err != nil {
				return err
			}
		case ea.IsDir() != eb.IsDir():
			// File replaced by a directory or the reverse.
			if err := emitSide(store, ea, full, Deleted, out); err != nil {
				return err
			}
			if err := emitSide(store, eb, full, Added, out); err != nil {
				return err
			}
		case ea.Hash != eb.Hash || ea.Mode != eb.Mode:
			*out = append(*out, Change{
				Path:   full,
				Status: Modified,
				Before: &index.FileState{Hash: ea.Hash, Mode: ea.Mode},
				After:  &index.FileState{Hash: eb.Hash, Mode: eb.Mode},
			})
		}
	}
	for name, eb := range after {
		if _, ok := before[name]; ok {
			continue
		}
		if err := emitSide(store, eb, join(prefix, name), Added, out); err != nil {
			return err
		}
	}
	return nil
}

// emitSide records e (a file or a whole subtree) as entirely added or
// deleted.
func emitSide(store TreeReader, e object.TreeEntry, full string, status Status, out *[]Change) error {
	if !e.IsDir() {
		st := &index.FileState{Hash: e.Hash, Mode: e.Mode}
		c := Change{Path: full, Status: status}
		if status == Added {
			c.After = st
		} else {
			c.Before = st
		}
		*out = append(*out, c)
		return nil
	}
	tr, err := store.ReadTree(e.Hash)
	if err != nil {
		return fmt.Errorf("diff trees: read %s: %w", e.Hash, err)
	}
	for _, child := range tr.Entries {
		if err := emitSide(store, child, join(full, child.Name), status, out); err != nil {
			return err
		}
	}
	return nil
}

// Paths returns the changed paths in order.
func Paths(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// sortChanges orders by path; a Deleted entry sorts before an Added entry
// for the same path.
func sortChanges(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].Status > changes[j].Status
	})
}
