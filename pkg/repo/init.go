package repo

import (
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"
)

const (
	headFile      = "HEAD"
	configFile    = "config"
	objectsDir    = "objects"
	defaultBranch = "master"
)

// InitOptions controls Init.
type InitOptions struct {
	// Bare stores the metadata directly in the root with no working copy.
	Bare bool
}

func (o InitOptions) validate() error { return nil }

// Init creates a repository in fs. HEAD points at refs/heads/master, which
// does not exist until the first commit. Initializing an existing
// repository is a no-op that returns it opened.
func Init(fs billy.Filesystem, opts InitOptions, options ...Option) (*Repo, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if r, err := Open(fs, options...); err == nil {
		return r, nil
	}

	meta := fs
	root := fs
	if opts.Bare {
		root = nil
	} else {
		if err := fs.MkdirAll(MetaDir, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", MetaDir, err)
		}
		var err error
		if meta, err = fs.Chroot(MetaDir); err != nil {
			return nil, fmt.Errorf("init: %w", err)
		}
	}

	for _, d := range []string{objectsDir, "refs/heads"} {
		if err := meta.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	cfg := defaultConfig()
	cfg.Core.Bare = opts.Bare
	if err := writeConfig(meta, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := writeFileAtomic(meta, headFile, []byte(symbolicPrefix+branchRef(defaultBranch)+"\n")); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := newRepo(root, meta, opts.Bare, options)
	r.log.Debug("repository initialized", slog.Bool("bare", opts.Bare))
	return r, nil
}
