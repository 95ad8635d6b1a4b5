// Package repo implements the gitlet commands on top of the object store,
// index, diff, merge and working-copy packages.
//
// A *Repo is not safe for concurrent use; ref files are still written with
// lockfile semantics so separate processes cannot interleave updates.
package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/worktree"
)

// MetaDir is the metadata directory of a non-bare repository.
const MetaDir = worktree.MetaDir

// Repo is an opened repository.
type Repo struct {
	// Root is the working-copy filesystem; nil for a bare repository.
	Root billy.Filesystem
	// Meta holds HEAD, refs, objects, the index and config.
	Meta     billy.Filesystem
	Store    *object.Store
	Worktree *worktree.Worktree

	bare bool
	log  *slog.Logger
	now  func() time.Time
}

// Option configures a Repo at Open or Init time.
type Option func(*Repo)

// WithLogger routes debug records for object writes, ref updates, index
// writes and reconciler actions to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithClock overrides the time source used for commit and reflog
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) {
		if now != nil {
			r.now = now
		}
	}
}

// Open opens the repository rooted at fs: either fs holds a .gitlet
// directory, or fs is itself the metadata directory of a bare repository.
func Open(fs billy.Filesystem, opts ...Option) (*Repo, error) {
	if info, err := fs.Stat(MetaDir); err == nil && info.IsDir() {
		meta, err := fs.Chroot(MetaDir)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		return newRepo(fs, meta, false, opts), nil
	}

	if _, err := fs.Stat(headFile); err == nil {
		cfg, err := readConfig(fs)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		if cfg.Core.Bare {
			return newRepo(nil, fs, true, opts), nil
		}
	}
	return nil, newError(ErrNotARepository, "open")
}

func newRepo(root, meta billy.Filesystem, bare bool, opts []Option) *Repo {
	r := &Repo{
		Root: root,
		Meta: meta,
		bare: bare,
		log:  slog.New(slog.DiscardHandler),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Store = object.NewStore(meta, r.log)
	if root != nil {
		r.Worktree = worktree.New(root, r.log)
	}
	return r
}

// IsBare reports whether the repository has no working copy.
func (r *Repo) IsBare() bool {
	return r.bare
}

// FindRoot searches upward from dir for a directory holding .gitlet, or
// for a bare repository, and returns its absolute path.
func FindRoot(dir string) (string, error) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("find root: %w", err)
	}
	for {
		if info, err := os.Stat(filepath.Join(cur, MetaDir)); err == nil && info.IsDir() {
			return cur, nil
		}
		if isBareDir(cur) {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", newError(ErrNotARepository, "find root").withPath(dir)
		}
		cur = parent
	}
}

func isBareDir(dir string) bool {
	for _, name := range []string{headFile, configFile, objectsDir} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// requireWorktree fails with ErrBareRepositoryUnsupported for bare repos.
func (r *Repo) requireWorktree(op string) error {
	if r.bare || r.Worktree == nil {
		return newError(ErrBareRepositoryUnsupported, op)
	}
	return nil
}

func (r *Repo) readIndex() (*index.Index, error) {
	idx, err := index.Read(r.Meta)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (r *Repo) writeIndex(idx *index.Index) error {
	if err := idx.Write(r.Meta); err != nil {
		return err
	}
	r.log.Debug("index written", slog.Int("entries", idx.Len()))
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
