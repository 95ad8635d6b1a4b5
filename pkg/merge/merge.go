// Package merge performs path-level three-way merges of trees.
package merge

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"

	"github.com/odvcencio/gitlet/pkg/diff3"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Style selects what a conflicted working file holds.
type Style string

const (
	// StyleMarkers writes a line-level merge with conflict markers.
	StyleMarkers Style = "markers"
	// StyleOurs keeps our content unmodified.
	StyleOurs Style = "ours"
)

// ParseStyle maps a configured conflict style to a Style. The empty string
// selects StyleMarkers.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "", StyleMarkers:
		return StyleMarkers, nil
	case StyleOurs:
		return StyleOurs, nil
	default:
		return "", fmt.Errorf("unknown conflict style %q", s)
	}
}

// Options tunes a merge.
type Options struct {
	Style  Style
	Logger *slog.Logger
}

// Store is the subset of the object store a merge needs.
type Store interface {
	ReadTree(h object.Hash) (*object.TreeObj, error)
	WriteTree(tr *object.TreeObj) (object.Hash, error)
	ReadBlob(h object.Hash) (*object.Blob, error)
}

// Side is one version of a path taking part in a conflict.
type Side struct {
	Hash object.Hash
	Mode string
}

// Conflict is a path changed differently on both sides. Base, Ours and
// Theirs are nil when the path is absent from that side. Content is what
// the working file should hold; Mode is its file mode.
type Conflict struct {
	Path    string
	Base    *Side
	Ours    *Side
	Theirs  *Side
	Content []byte
	Mode    string
}

// Result is the outcome of a tree merge.
type Result struct {
	// Entries are the cleanly merged stage-0 entries, sorted by path.
	Entries []index.Entry
	// Conflicts are sorted by path.
	Conflicts []Conflict
	// TreeHash is the merged tree; set only when there are no conflicts.
	TreeHash object.Hash
}

// ConflictedPaths returns the conflicted paths in order.
func (r *Result) ConflictedPaths() []string {
	out := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		out[i] = c.Path
	}
	return out
}

// Index builds the index a merge leaves behind: merged entries at stage 0
// and every conflict at stages 1, 2 and 3.
func (r *Result) Index() *index.Index {
	idx := index.New()
	for _, e := range r.Entries {
		idx.Add(e.Path, e.BlobHash, e.Mode)
	}
	for _, c := range r.Conflicts {
		idx.SetConflict(c.Path, c.Base.entry(), c.Ours.entry(), c.Theirs.entry())
	}
	return idx
}

func (s *Side) entry() *index.Entry {
	if s == nil {
		return nil
	}
	return &index.Entry{BlobHash: s.Hash, Mode: s.Mode}
}

func sameSide(a, b *Side) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

// Trees merges the trees ours and theirs against their common ancestor
// base. Any of the hashes may be empty, meaning the empty tree.
func Trees(store Store, base, ours, theirs object.Hash, opts Options) (*Result, error) {
	style, err := ParseStyle(string(opts.Style))
	if err != nil {
		return nil, fmt.Errorf("merge trees: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	baseMap, err := flattenSides(store, base)
	if err != nil {
		return nil, fmt.Errorf("merge trees: base: %w", err)
	}
	oursMap, err := flattenSides(store, ours)
	if err != nil {
		return nil, fmt.Errorf("merge trees: ours: %w", err)
	}
	theirsMap, err := flattenSides(store, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge trees: theirs: %w", err)
	}

	res := &Result{}
	for _, p := range collectAllPaths(baseMap, oursMap, theirsMap) {
		b, o, t := baseMap[p], oursMap[p], theirsMap[p]

		var picked *Side
		switch {
		case sameSide(o, t):
			picked = o
		case sameSide(b, o):
			picked = t
		case sameSide(b, t):
			picked = o
		default:
			c, err := buildConflict(store, style, p, b, o, t)
			if err != nil {
				return nil, fmt.Errorf("merge trees: %w", err)
			}
			log.Debug("merge conflict", slog.String("path", p))
			res.Conflicts = append(res.Conflicts, c)
			continue
		}
		if picked == nil {
			continue
		}
		res.Entries = append(res.Entries, index.Entry{
			Path:     p,
			Stage:    index.StageNormal,
			BlobHash: picked.Hash,
			Mode:     picked.Mode,
		})
	}

	if len(res.Conflicts) == 0 {
		h, err := res.Index().WriteTree(store)
		if err != nil {
			return nil, fmt.Errorf("merge trees: %w", err)
		}
		res.TreeHash = h
	}
	log.Debug("merge trees",
		slog.Int("entries", len(res.Entries)),
		slog.Int("conflicts", len(res.Conflicts)),
		slog.String("tree", string(res.TreeHash)))
	return res, nil
}

func buildConflict(store Store, style Style, p string, base, ours, theirs *Side) (Conflict, error) {
	c := Conflict{Path: p, Base: base, Ours: ours, Theirs: theirs}
	if ours != nil {
		c.Mode = ours.Mode
	} else {
		c.Mode = theirs.Mode
	}

	baseData, err := readSide(store, base)
	if err != nil {
		return Conflict{}, fmt.Errorf("read base %q: %w", p, err)
	}
	oursData, err := readSide(store, ours)
	if err != nil {
		return Conflict{}, fmt.Errorf("read ours %q: %w", p, err)
	}
	theirsData, err := readSide(store, theirs)
	if err != nil {
		return Conflict{}, fmt.Errorf("read theirs %q: %w", p, err)
	}

	surviving := oursData
	if ours == nil {
		surviving = theirsData
	}
	switch {
	case style == StyleOurs:
		c.Content = surviving
	case isBinaryContent(baseData) || isBinaryContent(oursData) || isBinaryContent(theirsData):
		// Binary content cannot carry markers; keep the surviving bytes.
		c.Content = surviving
	case ours == nil || theirs == nil:
		c.Content = diff3.WrapConflict(oursData, theirsData)
	default:
		r := diff3.Merge(baseData, oursData, theirsData)
		if r.HasConflicts {
			c.Content = r.Merged
		} else {
			c.Content = diff3.WrapConflict(oursData, theirsData)
		}
	}
	return c, nil
}

func readSide(store Store, s *Side) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	blob, err := store.ReadBlob(s.Hash)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

func flattenSides(store Store, treeHash object.Hash) (map[string]*Side, error) {
	entries, err := index.Flatten(store, treeHash)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*Side, len(entries))
	for _, e := range entries {
		m[e.Path] = &Side{Hash: e.BlobHash, Mode: e.Mode}
	}
	return m, nil
}

// collectAllPaths returns a sorted, deduplicated list of all file paths
// across three file maps.
func collectAllPaths(base, ours, theirs map[string]*Side) []string {
	seen := make(map[string]bool)
	for _, m := range []map[string]*Side{base, ours, theirs} {
		for p := range m {
			seen[p] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func isBinaryContent(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
