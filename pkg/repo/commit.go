package repo

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/gitlet/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitOptions controls Commit.
type CommitOptions struct {
	// Message is required unless a merge is being concluded, in which case
	// the prepared merge message is used.
	Message string
	// Author overrides the configured "name <email>".
	Author string
	// Signer, when set, signs the commit.
	Signer CommitSigner
}

func (o CommitOptions) validate() error {
	if strings.ContainsAny(o.Author, "\n\r") {
		return newError(ErrInvalidArgument, "commit").wrap(fmt.Errorf("author contains a newline"))
	}
	return nil
}

// Commit records the staged tree as a new commit on HEAD. Concluding a
// merge uses MERGE_MSG, takes MERGE_HEAD as second parent and leaves the
// merge state.
func (r *Repo) Commit(opts CommitOptions) (string, error) {
	const op = "commit"
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := r.requireWorktree(op); err != nil {
		return "", err
	}

	idx, err := r.readIndex()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if conflicted := idx.ConflictedPaths(); len(conflicted) > 0 {
		return "", newError(ErrUnresolvedConflicts, op).withPaths(conflicted)
	}

	mergeHead, err := r.readRef(mergeHeadFile)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	merging := mergeHead != ""

	message := opts.Message
	if merging {
		data, err := readFile(r.Meta, mergeMsgFile)
		if err != nil && !isNotExist(err) {
			return "", fmt.Errorf("%s: read %s: %w", op, mergeMsgFile, err)
		}
		if len(data) > 0 {
			message = string(data)
		}
	}
	message = strings.TrimRight(message, "\n")
	if strings.TrimSpace(message) == "" {
		return "", newError(ErrInvalidArgument, op).wrap(fmt.Errorf("empty commit message"))
	}

	headHash, err := r.headHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if headHash == "" && idx.Len() == 0 {
		return "", newError(ErrNothingToCommit, op)
	}
	treeHash, err := idx.WriteTree(r.Store)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if headHash != "" && !merging {
		headTree, err := r.headTree()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if headTree == treeHash {
			return "", newError(ErrNothingToCommit, op).withHash(headHash)
		}
	}

	var parents []object.Hash
	if headHash != "" {
		parents = append(parents, headHash)
	}
	if merging {
		parents = append(parents, mergeHead)
	}
	author, err := r.resolveAuthor(opts.Author)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	h, err := r.writeCommit(treeHash, parents, author, message, opts.Signer)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	reason := "commit: " + firstLine(message)
	if merging {
		reason = "commit (merge): " + firstLine(message)
	}
	if err := r.advanceHead(h, headHash, reason); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if merging {
		if err := r.clearMergeState(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "Merge made by the three-way strategy", nil
	}
	desc, err := r.headDescription()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("[%s %s] %s", desc, h.Short(), firstLine(message)), nil
}

func (r *Repo) writeCommit(tree object.Hash, parents []object.Hash, author, message string, signer CommitSigner) (object.Hash, error) {
	c := &object.CommitObj{
		TreeHash:  tree,
		Parents:   parents,
		Author:    author,
		Timestamp: r.now().Unix(),
		Message:   message,
	}
	if signer != nil {
		sig, err := signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = sig
	}
	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	r.log.Debug("commit written", slog.String("hash", string(h)), slog.Int("parents", len(parents)))
	return h, nil
}

// advanceHead moves the ref HEAD resolves to from old to h.
func (r *Repo) advanceHead(h, old object.Hash, reason string) error {
	ref, err := r.headTerminalRef()
	if err != nil {
		return err
	}
	return r.UpdateRefCAS(ref, h, old, reason)
}

func (r *Repo) clearMergeState() error {
	if err := r.deleteRef(mergeHeadFile); err != nil {
		return err
	}
	return r.deleteRef(mergeMsgFile)
}

// resolveAuthor picks the explicit author, then the configured identity,
// then $USER.
func (r *Repo) resolveAuthor(explicit string) (string, error) {
	if a := strings.TrimSpace(explicit); a != "" {
		return a, nil
	}
	cfg, err := r.Config()
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(cfg.User.Name)
	email := strings.TrimSpace(cfg.User.Email)
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email), nil
	case name != "":
		return name, nil
	case email != "":
		return "<" + email + ">", nil
	}
	if u := strings.TrimSpace(os.Getenv("USER")); u != "" {
		return u, nil
	}
	return "unknown", nil
}

// LogOptions controls Log.
type LogOptions struct {
	// Limit caps the number of commits shown; zero shows all of them.
	Limit int
}

func (o LogOptions) validate() error {
	if o.Limit < 0 {
		return newError(ErrInvalidArgument, "log").wrap(fmt.Errorf("negative limit %d", o.Limit))
	}
	return nil
}

// Log renders the first-parent history of HEAD, newest first.
func (r *Repo) Log(opts LogOptions) (string, error) {
	const op = "log"
	if err := opts.validate(); err != nil {
		return "", err
	}
	current, err := r.headHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if current == "" {
		branch, _ := r.CurrentBranch()
		return "", newError(ErrRefNotFound, op).withRef(branch).
			wrap(fmt.Errorf("current branch does not have any commits yet"))
	}

	var b strings.Builder
	for n := 0; current != "" && (opts.Limit == 0 || n < opts.Limit); n++ {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return "", fmt.Errorf("%s: read commit %s: %w", op, current.Short(), err)
		}
		if n > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "commit %s\n", current)
		if len(c.Parents) > 1 {
			shorts := make([]string, len(c.Parents))
			for i, p := range c.Parents {
				shorts[i] = p.Short()
			}
			fmt.Fprintf(&b, "Merge: %s\n", strings.Join(shorts, " "))
		}
		fmt.Fprintf(&b, "Author: %s\n", c.Author)
		fmt.Fprintf(&b, "Date:   %s\n\n", time.Unix(c.Timestamp, 0).UTC().Format("Mon Jan 2 15:04:05 2006 -0700"))
		for _, line := range strings.Split(c.Message, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}

		current = ""
		if len(c.Parents) > 0 {
			current = c.Parents[0]
		}
	}
	return b.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
