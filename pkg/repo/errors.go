package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
)

// Error kinds. Every error a command returns for one of these conditions is
// an *Error whose Kind is the matching sentinel, so errors.Is works against
// the sentinel and errors.As recovers the details.
var (
	ErrNotARepository             = errors.New("not a gitlet repository")
	ErrBareRepositoryUnsupported  = errors.New("this operation must be run in a work tree")
	ErrNoMatchingPath             = errors.New("pathspec did not match any files")
	ErrUnsafeRemoval              = errors.New("refusing to remove")
	ErrNothingToCommit            = errors.New("nothing to commit, working tree clean")
	ErrUnresolvedConflicts        = errors.New("you have unmerged paths")
	ErrObjectNotFound             = object.ErrObjectNotFound
	ErrRefNotFound                = errors.New("not a valid object name")
	ErrNotACommit                 = errors.New("reference is not a commit")
	ErrWouldOverwriteLocalChanges = errors.New("local changes would be overwritten")
	ErrRefUpdateConflict          = errors.New("ref update conflict")
	ErrInvalidArgument            = errors.New("invalid argument")
)

// Error carries the structured details of a failed command.
type Error struct {
	Kind  error
	Op    string
	Path  string
	Paths []string
	Hash  object.Hash
	Ref   string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, " %q", e.Ref)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Hash != "" {
		fmt.Fprintf(&b, " (%s)", e.Hash.Short())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for _, p := range e.Paths {
		b.WriteString("\n\t")
		b.WriteString(p)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newError(kind error, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

func (e *Error) withPath(p string) *Error      { e.Path = p; return e }
func (e *Error) withPaths(p []string) *Error   { e.Paths = p; return e }
func (e *Error) withRef(ref string) *Error     { e.Ref = ref; return e }
func (e *Error) withHash(h object.Hash) *Error { e.Hash = h; return e }
func (e *Error) wrap(err error) *Error         { e.Err = err; return e }
