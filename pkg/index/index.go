// Package index implements the staging area: an ordered set of
// repository-relative paths mapped to staged blob hashes and conflict stages.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/object"
)

// FileName is the index file name inside the metadata directory.
const FileName = "index"

// Stage is an entry's conflict slot.
type Stage int

const (
	StageNormal Stage = iota // resolved
	StageBase                // common ancestor version
	StageOurs                // current branch version
	StageTheirs              // merged-in version
)

// Entry records one staged path at one stage.
type Entry struct {
	Path     string      `json:"path"`
	Stage    Stage       `json:"stage"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode"`
}

type entryKey struct {
	path  string
	stage Stage
}

// Index holds the full staging area. The zero value is not usable; use New,
// Read or FromTree.
type Index struct {
	entries map[entryKey]Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[entryKey]Entry)}
}

type indexFile struct {
	Entries []Entry `json:"entries"`
}

// Read loads the index from fs. If the file does not exist, an empty Index
// is returned (no error).
func Read(fs billy.Filesystem) (*Index, error) {
	f, err := fs.Open(FileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("read index: unmarshal: %w", err)
	}

	idx := New()
	for _, e := range file.Entries {
		if e.Stage < StageNormal || e.Stage > StageTheirs {
			return nil, fmt.Errorf("read index: %q has invalid stage %d", e.Path, e.Stage)
		}
		idx.entries[entryKey{e.Path, e.Stage}] = e
	}
	return idx, nil
}

// Write atomically writes the index to fs.
func (idx *Index) Write(fs billy.Filesystem) error {
	data, err := json.MarshalIndent(indexFile{Entries: idx.Entries()}, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}

	// Atomic write via temp file + rename.
	tmp, err := fs.TempFile(".", ".index-tmp-")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}
	if err := fs.Rename(tmpName, FileName); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}

// Entries returns every entry sorted by path, then stage.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Len returns the number of entries across all stages.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Get returns the entry for path at stage.
func (idx *Index) Get(path string, stage Stage) (Entry, bool) {
	e, ok := idx.entries[entryKey{path, stage}]
	return e, ok
}

// Has reports whether path has an entry at any stage.
func (idx *Index) Has(path string) bool {
	for s := StageNormal; s <= StageTheirs; s++ {
		if _, ok := idx.entries[entryKey{path, s}]; ok {
			return true
		}
	}
	return false
}

// Add inserts or replaces the stage-0 entry for path. Any conflict stages
// for the path are dropped: staging a path resolves its conflict. Entries
// for the path's parent directories ("a" when adding "a/b") are dropped
// too, since a path cannot be both a file and a directory.
func (idx *Index) Add(path string, blobHash object.Hash, mode string) {
	idx.Remove(path)
	for dir := parentDir(path); dir != ""; dir = parentDir(dir) {
		idx.Remove(dir)
	}
	idx.entries[entryKey{path, StageNormal}] = Entry{
		Path:     path,
		Stage:    StageNormal,
		BlobHash: blobHash,
		Mode:     normalizeMode(mode),
	}
}

// Remove deletes every entry for path.
func (idx *Index) Remove(path string) {
	for s := StageNormal; s <= StageTheirs; s++ {
		delete(idx.entries, entryKey{path, s})
	}
}

// RemoveShadowed drops every entry lying below one of files. Call it after
// staging paths that used to be directories.
func (idx *Index) RemoveShadowed(files []string) {
	if len(files) == 0 {
		return
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	for k := range idx.entries {
		for dir := parentDir(k.path); dir != ""; dir = parentDir(dir) {
			if _, ok := set[dir]; ok {
				delete(idx.entries, k)
				break
			}
		}
	}
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// SetConflict replaces any entries for path with conflict stages. A nil
// side is omitted (the path did not exist there).
func (idx *Index) SetConflict(path string, base, ours, theirs *Entry) {
	idx.Remove(path)
	for stage, e := range map[Stage]*Entry{StageBase: base, StageOurs: ours, StageTheirs: theirs} {
		if e == nil {
			continue
		}
		idx.entries[entryKey{path, stage}] = Entry{
			Path:     path,
			Stage:    stage,
			BlobHash: e.BlobHash,
			Mode:     normalizeMode(e.Mode),
		}
	}
}

// ConflictedPaths returns the sorted paths that have a non-zero stage.
func (idx *Index) ConflictedPaths() []string {
	seen := make(map[string]struct{})
	for k := range idx.entries {
		if k.stage != StageNormal {
			seen[k.path] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Paths returns every distinct path in the index, sorted.
func (idx *Index) Paths() []string {
	seen := make(map[string]struct{}, len(idx.entries))
	for k := range idx.entries {
		seen[k.path] = struct{}{}
	}
	return sortedKeys(seen)
}

// MatchingFiles returns the sorted distinct paths that equal prefix or lie
// beneath it. An empty prefix or "." matches everything.
func (idx *Index) MatchingFiles(prefix string) []string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "." {
		prefix = ""
	}
	seen := make(map[string]struct{})
	for k := range idx.entries {
		if prefix == "" || k.path == prefix || strings.HasPrefix(k.path, prefix+"/") {
			seen[k.path] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// FileState is a staged file's content identity.
type FileState struct {
	Hash object.Hash
	Mode string
}

// Snapshot returns the stage-0 entries as a flat path map.
func (idx *Index) Snapshot() map[string]FileState {
	out := make(map[string]FileState, len(idx.entries))
	for k, e := range idx.entries {
		if k.stage == StageNormal {
			out[k.path] = FileState{Hash: e.BlobHash, Mode: e.Mode}
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalizeMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}
