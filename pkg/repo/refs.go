package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/object"
)

const (
	symbolicPrefix = "ref: "
	refsPrefix     = "refs/"
	branchPrefix   = "refs/heads/"
	mergeHeadFile  = "MERGE_HEAD"
	mergeMsgFile   = "MERGE_MSG"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	return fmt.Sprintf("update ref %q: ref updated but reflog append failed (old=%s new=%s): %v",
		e.Ref, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error { return e.Err }

func branchRef(name string) string { return branchPrefix + name }

// validBranchName reports whether name can be stored under refs/heads/.
func validBranchName(name string) bool {
	if name == "" || name == headFile || strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") {
		return false
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	for _, c := range name {
		if c <= ' ' || c == 0x7f || strings.ContainsRune(`~^:?*[\`, c) {
			return false
		}
	}
	return true
}

// validRefName accepts HEAD, MERGE_HEAD, or refs/<valid path>.
func validRefName(name string) bool {
	if name == headFile || name == mergeHeadFile {
		return true
	}
	return strings.HasPrefix(name, refsPrefix) && validBranchName(strings.TrimPrefix(name, refsPrefix))
}

// readHead returns HEAD's symbolic target ("refs/heads/x") or, when
// detached, the commit hash it holds.
func (r *Repo) readHead() (symbolic string, detached object.Hash, err error) {
	data, err := readFile(r.Meta, headFile)
	if err != nil {
		return "", "", fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symbolicPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(content, symbolicPrefix)), "", nil
	}
	return "", object.Hash(content), nil
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	sym, _, err := r.readHead()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(sym, branchPrefix), nil
}

// headHash returns the commit HEAD points at; "" on an unborn branch.
func (r *Repo) headHash() (object.Hash, error) {
	sym, detached, err := r.readHead()
	if err != nil {
		return "", err
	}
	if sym == "" {
		return detached, nil
	}
	return r.readRef(sym)
}

// headDescription names HEAD for messages: the branch, or "detached HEAD".
func (r *Repo) headDescription() (string, error) {
	branch, err := r.CurrentBranch()
	if err != nil {
		return "", err
	}
	if branch == "" {
		return "detached HEAD", nil
	}
	return branch, nil
}

// headTerminalRef returns the ref a commit on HEAD moves: the current
// branch, or HEAD itself when detached.
func (r *Repo) headTerminalRef() (string, error) {
	sym, _, err := r.readHead()
	if err != nil {
		return "", err
	}
	if sym == "" {
		return headFile, nil
	}
	return sym, nil
}

// readRef returns the hash stored in the ref file, or "" if it is absent.
func (r *Repo) readRef(name string) (object.Hash, error) {
	data, err := readFile(r.Meta, name)
	if err != nil {
		if isNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read ref %q: %w", name, err)
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symbolicPrefix) {
		return r.readRef(strings.TrimSpace(strings.TrimPrefix(content, symbolicPrefix)))
	}
	return object.Hash(content), nil
}

// ResolveRef turns a user-supplied name into an object hash: HEAD,
// MERGE_HEAD, a full refs/ path, a branch name, a full hash or an
// abbreviated hash of at least four characters, in that order.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newError(ErrRefNotFound, "resolve").withRef(name)
	}

	var candidates []string
	switch {
	case name == headFile || name == mergeHeadFile:
		candidates = []string{name}
	case strings.HasPrefix(name, refsPrefix):
		if validRefName(name) {
			candidates = []string{name}
		}
	case validBranchName(name):
		candidates = []string{branchRef(name)}
	}
	for _, ref := range candidates {
		var (
			h   object.Hash
			err error
		)
		if ref == headFile {
			h, err = r.headHash()
		} else {
			h, err = r.readRef(ref)
		}
		if err != nil {
			return "", err
		}
		if h != "" {
			return h, nil
		}
	}

	if h, err := r.Store.ResolvePrefix(name); err == nil {
		return h, nil
	}
	return "", newError(ErrRefNotFound, "resolve").withRef(name)
}

// resolveCommit resolves name and checks that it names a commit.
func (r *Repo) resolveCommit(op, name string) (object.Hash, *object.CommitObj, error) {
	h, err := r.ResolveRef(name)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Op = op
		}
		return "", nil, err
	}
	typ, err := r.Store.Type(h)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) {
			return "", nil, newError(ErrRefNotFound, op).withRef(name).withHash(h).wrap(err)
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if typ != object.TypeCommit {
		return "", nil, newError(ErrNotACommit, op).withRef(name).withHash(h)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return h, c, nil
}

// UpdateRefCAS points the ref name at newHash using lockfile + rename
// semantics. The update only happens when the ref currently holds
// expectedOld ("" expects the ref to be absent); otherwise the error is
// ErrRefUpdateConflict. Updating a ref that HEAD is attached to also logs
// the move in HEAD's reflog.
//
// Reflog append happens after the ref rename; if it fails the ref update
// remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, newHash, expectedOld object.Hash, reason string) error {
	if !validRefName(name) {
		return newError(ErrInvalidArgument, "update ref").withRef(name)
	}
	if reason == "" {
		reason = "update"
	}

	oldHash, err := r.casWrite(name, string(newHash)+"\n", func(current string) error {
		if object.Hash(current) != expectedOld {
			return newError(ErrRefUpdateConflict, "update ref").withRef(name).
				wrap(fmt.Errorf("expected %s, found %s", displayHash(expectedOld), displayHash(object.Hash(current))))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Debug("ref updated", slog.String("ref", name), slog.String("old", string(oldHash)), slog.String("new", string(newHash)))

	entry := r.newReflogEntry(name, oldHash, newHash, reason)
	logErr := r.appendReflog(entry)
	if logErr == nil && name != headFile {
		if sym, _, err := r.readHead(); err == nil && sym == name {
			entry.Ref = headFile
			logErr = r.appendReflog(entry)
		}
	}
	if logErr != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: newHash, Err: logErr}
	}
	return nil
}

// setHead rewrites HEAD as a symbolic ref to branch, or detaches it at
// hash when branch is empty.
func (r *Repo) setHead(branch string, hash object.Hash, reason string) error {
	content := string(hash) + "\n"
	if branch != "" {
		content = symbolicPrefix + branchRef(branch) + "\n"
	}
	oldHash, err := r.headHash()
	if err != nil {
		return err
	}
	if _, err := r.casWrite(headFile, content, nil); err != nil {
		return err
	}
	newHash, err := r.headHash()
	if err != nil {
		return err
	}
	r.log.Debug("HEAD moved", slog.String("branch", branch), slog.String("hash", string(newHash)))
	if err := r.appendReflog(r.newReflogEntry(headFile, oldHash, newHash, reason)); err != nil {
		return &RefUpdateReflogError{Ref: headFile, OldHash: oldHash, NewHash: newHash, Err: err}
	}
	return nil
}

// casWrite takes name's lock, lets check inspect the current content and
// then renames the new content into place. It returns the previous hash.
func (r *Repo) casWrite(name, content string, check func(current string) error) (object.Hash, error) {
	if dir := path.Dir(name); dir != "." {
		if err := r.Meta.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("update ref %q: mkdir: %w", name, err)
		}
	}

	lockPath := name + ".lock"
	lock, err := acquireRefLock(r.Meta, lockPath)
	if err != nil {
		return "", fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lock != nil {
			_ = lock.Close()
		}
		if cleanupLock {
			_ = r.Meta.Remove(lockPath)
		}
	}()

	current, err := r.readRawRef(name)
	if err != nil {
		return "", fmt.Errorf("update ref %q: read old value: %w", name, err)
	}
	if check != nil {
		if err := check(current); err != nil {
			return "", err
		}
	}

	oldHash := object.Hash(current)
	if strings.HasPrefix(current, symbolicPrefix) {
		if oldHash, err = r.readRef(strings.TrimSpace(strings.TrimPrefix(current, symbolicPrefix))); err != nil {
			return "", err
		}
	}

	if _, err := lock.Write([]byte(content)); err != nil {
		return "", fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lock.Close(); err != nil {
		lock = nil
		return "", fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lock = nil

	if err := r.Meta.Rename(lockPath, name); err != nil {
		return "", fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false
	return oldHash, nil
}

func acquireRefLock(fs billy.Filesystem, lockPath string) (billy.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := fs.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, os.ErrExist) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

// readRawRef returns the trimmed ref file content, "" when absent.
func (r *Repo) readRawRef(name string) (string, error) {
	data, err := readFile(r.Meta, name)
	if err != nil {
		if isNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// deleteRef removes a ref file; a missing ref is fine.
func (r *Repo) deleteRef(name string) error {
	if err := r.Meta.Remove(name); err != nil && !isNotExist(err) {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the local branch names, sorted.
func (r *Repo) ListBranches() ([]string, error) {
	var names []string
	if err := walkRefs(r.Meta, strings.TrimSuffix(branchPrefix, "/"), "", &names); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func walkRefs(fs billy.Filesystem, dir, rel string, out *[]string) error {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}
	for _, info := range infos {
		name := info.Name()
		if rel != "" {
			name = rel + "/" + name
		}
		if info.IsDir() {
			if err := walkRefs(fs, dir+"/"+info.Name(), name, out); err != nil {
				return err
			}
			continue
		}
		if strings.HasSuffix(name, ".lock") || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		*out = append(*out, name)
	}
	return nil
}

// UpdateRef points name (HEAD, MERGE_HEAD or a refs/ path) at the commit
// target resolves to. Updating HEAD moves the branch it is attached to.
func (r *Repo) UpdateRef(name, target string) (string, error) {
	const op = "update-ref"
	if !validRefName(name) {
		return "", newError(ErrInvalidArgument, op).withRef(name)
	}
	h, _, err := r.resolveCommit(op, target)
	if err != nil {
		return "", err
	}
	terminal := name
	if name == headFile {
		if terminal, err = r.headTerminalRef(); err != nil {
			return "", err
		}
	}
	old, err := r.readRef(terminal)
	if err != nil {
		return "", err
	}
	if err := r.UpdateRefCAS(terminal, h, old, "update-ref"); err != nil {
		return "", err
	}
	return "", nil
}

func displayHash(h object.Hash) string {
	if h == "" {
		return "(none)"
	}
	return h.Short()
}
