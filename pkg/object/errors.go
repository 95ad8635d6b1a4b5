package object

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is matched by every lookup failure for a missing hash.
var ErrObjectNotFound = errors.New("object not found")

// NotFoundError reports a hash that is absent from the store (or malformed,
// which can never be present).
type NotFoundError struct {
	Hash Hash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %s: %s", e.Hash, ErrObjectNotFound)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrObjectNotFound
}

// TypeMismatchError reports an object read as the wrong type.
type TypeMismatchError struct {
	Hash Hash
	Got  ObjectType
	Want ObjectType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("object %s: type mismatch: got %q, want %q", e.Hash, e.Got, e.Want)
}
