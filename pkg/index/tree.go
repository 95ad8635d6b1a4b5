package index

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
)

// TreeWriter is the subset of the object store WriteTree needs.
type TreeWriter interface {
	WriteTree(tr *object.TreeObj) (object.Hash, error)
}

// TreeReader is the subset of the object store Flatten needs.
type TreeReader interface {
	ReadTree(h object.Hash) (*object.TreeObj, error)
}

// WriteTree converts the flat stage-0 entries into a hierarchical tree,
// writing every TreeObj to the store and returning the root hash. Conflict
// stages are ignored.
//
// Paths are sorted first, then grouped by their leading segment; each group
// recurses into a subtree, so trees are written bottom-up. The result only
// depends on the staged content, never on insertion order.
func (idx *Index) WriteTree(store TreeWriter) (object.Hash, error) {
	var files []Entry
	for _, e := range idx.Entries() {
		if e.Stage == StageNormal {
			files = append(files, e)
		}
	}
	b := &treeBuilder{store: store, written: make(map[object.Hash]struct{})}
	return b.build(files, "")
}

type treeBuilder struct {
	store TreeWriter
	// written caches subtrees by hash so identical directories are
	// serialized once per build.
	written map[object.Hash]struct{}
}

// build writes the tree for entries, all of which share prefix (with
// "prefix/" already part of each path). entries must be sorted by path.
func (b *treeBuilder) build(entries []Entry, prefix string) (object.Hash, error) {
	var treeEntries []object.TreeEntry
	names := make(map[string]struct{}, len(entries))

	for i := 0; i < len(entries); {
		rel := strings.TrimPrefix(entries[i].Path, prefix)
		name, _, isDir := strings.Cut(rel, "/")
		if _, dup := names[name]; dup {
			return "", fmt.Errorf("write tree: %q is staged as both a file and a directory", prefix+name)
		}
		names[name] = struct{}{}
		if !isDir {
			treeEntries = append(treeEntries, object.TreeEntry{
				Name: name,
				Mode: normalizeMode(entries[i].Mode),
				Type: object.TypeBlob,
				Hash: entries[i].BlobHash,
			})
			i++
			continue
		}
		// Collect the contiguous group under name/.
		childPrefix := prefix + name + "/"
		j := i
		for j < len(entries) && strings.HasPrefix(entries[j].Path, childPrefix) {
			j++
		}
		subHash, err := b.build(entries[i:j], childPrefix)
		if err != nil {
			return "", err
		}
		treeEntries = append(treeEntries, object.TreeEntry{
			Name: name,
			Mode: object.TreeModeDir,
			Type: object.TypeTree,
			Hash: subHash,
		})
		i = j
	}

	tr := &object.TreeObj{Entries: treeEntries}
	h := object.HashObject(object.TypeTree, object.MarshalTree(tr))
	if _, ok := b.written[h]; ok {
		return h, nil
	}
	if _, err := b.store.WriteTree(tr); err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", strings.TrimSuffix(prefix, "/"), err)
	}
	b.written[h] = struct{}{}
	return h, nil
}

// Flatten walks a tree object recursively, returning a stage-0 entry for
// every file with its full forward-slash path, sorted by path.
func Flatten(store TreeReader, treeHash object.Hash) ([]Entry, error) {
	var out []Entry
	if err := flattenRec(store, treeHash, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func flattenRec(store TreeReader, h object.Hash, prefix string, out *[]Entry) error {
	tr, err := store.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}
	for _, te := range tr.Entries {
		full := te.Name
		if prefix != "" {
			full = path.Join(prefix, te.Name)
		}
		if te.IsDir() {
			if err := flattenRec(store, te.Hash, full, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, Entry{
			Path:     full,
			Stage:    StageNormal,
			BlobHash: te.Hash,
			Mode:     normalizeMode(te.Mode),
		})
	}
	return nil
}

// FromTree builds an index whose stage-0 entries mirror the tree.
func FromTree(store TreeReader, treeHash object.Hash) (*Index, error) {
	entries, err := Flatten(store, treeHash)
	if err != nil {
		return nil, err
	}
	idx := New()
	for _, e := range entries {
		idx.Add(e.Path, e.BlobHash, e.Mode)
	}
	return idx, nil
}
