// Package worktree reads and reconciles the working copy: the user-visible
// files at the repository root.
package worktree

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Worktree gives path-level access to the working copy. All paths are
// repository-relative and use forward slashes.
type Worktree struct {
	fs  billy.Filesystem
	log *slog.Logger
}

// New wraps the working-copy root fs. A nil logger discards.
func New(fs billy.Filesystem, logger *slog.Logger) *Worktree {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worktree{fs: fs, log: logger}
}

// Filesystem returns the underlying working-copy filesystem.
func (w *Worktree) Filesystem() billy.Filesystem {
	return w.fs
}

// ReadFile returns the content of the file at p.
func (w *Worktree) ReadFile(p string) ([]byte, error) {
	f, err := w.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile writes data at p with the permissions implied by the tree mode,
// creating parent directories as needed.
func (w *Worktree) WriteFile(p string, data []byte, mode string) error {
	if dir := path.Dir(p); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write %q: mkdir: %w", p, err)
		}
	}
	perm := filePermFromMode(mode)
	f, err := w.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	// OpenFile leaves the permissions of an existing file alone.
	if ch, ok := w.fs.(billy.Change); ok {
		if err := ch.Chmod(p, perm); err != nil && !errors.Is(err, billy.ErrNotSupported) {
			return fmt.Errorf("write %q: chmod: %w", p, err)
		}
	}
	return nil
}

// Remove deletes the file at p, then prunes parent directories left
// empty. A missing file is not an error.
func (w *Worktree) Remove(p string) error {
	if err := w.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", p, err)
	}
	w.pruneEmptyParents(path.Dir(p))
	return nil
}

func (w *Worktree) pruneEmptyParents(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		infos, err := w.fs.ReadDir(dir)
		if err != nil || len(infos) > 0 {
			return
		}
		if err := w.fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

// Exists reports whether anything exists at p.
func (w *Worktree) Exists(p string) bool {
	_, err := w.fs.Lstat(p)
	return err == nil
}

// IsDir reports whether p is a directory. The root "." is a directory.
func (w *Worktree) IsDir(p string) bool {
	if p == "" || p == "." {
		return true
	}
	info, err := w.fs.Lstat(p)
	return err == nil && info.IsDir()
}

// HashFile returns the blob hash and tree mode of the live content at p
// without writing anything.
func (w *Worktree) HashFile(p string) (index.FileState, error) {
	info, err := w.fs.Lstat(p)
	if err != nil {
		return index.FileState{}, err
	}
	data, err := w.ReadFile(p)
	if err != nil {
		return index.FileState{}, err
	}
	return index.FileState{
		Hash: object.HashObject(object.TypeBlob, data),
		Mode: modeFromFileInfo(info),
	}, nil
}

// List returns the sorted regular files at or below the repository-relative
// path pattern, skipping ignored paths. "" and "." list the whole tree. A
// pattern naming nothing yields an empty list.
func (w *Worktree) List(pattern string) ([]string, error) {
	ig, err := LoadIgnore(w.fs)
	if err != nil {
		return nil, err
	}
	root := CleanPath(pattern)

	var out []string
	if root != "." {
		info, err := w.fs.Lstat(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("list %q: %w", root, err)
		}
		if ig.Match(root, info.IsDir()) {
			return nil, nil
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() {
				out = append(out, root)
			}
			return out, nil
		}
	}
	if err := w.walk(root, ig, &out); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (w *Worktree) walk(dir string, ig *Ignore, out *[]string) error {
	infos, err := w.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list %q: %w", dir, err)
	}
	for _, info := range infos {
		p := info.Name()
		if dir != "." {
			p = dir + "/" + info.Name()
		}
		if ig.Match(p, info.IsDir()) {
			continue
		}
		switch {
		case info.IsDir():
			if err := w.walk(p, ig, out); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			*out = append(*out, p)
		}
	}
	return nil
}

// Untracked returns the files under the working copy that the index does
// not know at any stage.
func (w *Worktree) Untracked(idx *index.Index) ([]string, error) {
	files, err := w.List(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range files {
		if !idx.Has(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// BlobReader is the subset of the object store Apply needs.
type BlobReader interface {
	ReadBlob(h object.Hash) (*object.Blob, error)
}

// ApplyError reports the change that stopped Apply. Applied lists the paths
// already reconciled; nothing is rolled back.
type ApplyError struct {
	Path    string
	Applied []string
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %q: %v", e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Apply makes the working copy match changes: Added and Modified paths are
// written from their blobs, Deleted paths are removed along with parent
// directories left empty. Deletions run first so a file and a directory may
// trade places; within each group paths go in order. It returns the
// reconciled paths; on failure the error is an *ApplyError.
func (w *Worktree) Apply(store BlobReader, changes []diff.Change) ([]string, error) {
	ordered := append([]diff.Change(nil), changes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := ordered[i].Status == diff.Deleted, ordered[j].Status == diff.Deleted
		if di != dj {
			return di
		}
		return ordered[i].Path < ordered[j].Path
	})

	var applied []string
	for _, c := range ordered {
		if err := w.applyOne(store, c); err != nil {
			return applied, &ApplyError{Path: c.Path, Applied: applied, Err: err}
		}
		applied = append(applied, c.Path)
	}
	return applied, nil
}

func (w *Worktree) applyOne(store BlobReader, c diff.Change) error {
	if c.Status == diff.Deleted {
		w.log.Debug("worktree remove", slog.String("path", c.Path))
		return w.Remove(c.Path)
	}
	if c.After == nil {
		return fmt.Errorf("%s change has no target content", c.Status)
	}
	blob, err := store.ReadBlob(c.After.Hash)
	if err != nil {
		return err
	}
	w.log.Debug("worktree write", slog.String("path", c.Path), slog.String("hash", string(c.After.Hash)))
	return w.WriteFile(c.Path, blob.Data, c.After.Mode)
}

// CleanPath normalizes a user-supplied repository-relative path to the
// forward-slash form stored in the index. The root is ".".
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func filePermFromMode(mode string) os.FileMode {
	if mode == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
