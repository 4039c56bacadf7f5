package object

import (
	"errors"
	"fmt"
)

// NotFoundError reports an absent object. Reads of missing ids always fail
// loudly; the store never substitutes a zero object.
type NotFoundError struct {
	Kind Kind
	ID   ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Kind, e.ID.Short(12))
}

// CorruptError reports stored bytes that failed a hash-integrity or
// structural check on read. Fatal to the enclosing operation; never
// auto-repaired.
type CorruptError struct {
	Kind   Kind
	ID     ID
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s %s: corrupt: %s", e.Kind, e.ID.Short(12), e.Reason)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsCorrupt reports whether err wraps a CorruptError.
func IsCorrupt(err error) bool {
	var c *CorruptError
	return errors.As(err, &c)
}
