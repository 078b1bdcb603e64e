package store

import "github.com/pkg/errors"

// Kind classifies a store error, matching the taxonomy in the
// specification's error handling design.
type Kind int

const (
	// KindIO covers open/read/write/copy/remove failures against the
	// filesystem.
	KindIO Kind = iota
	// KindSerialization covers encode/decode failures, of either the
	// primary or the temp file.
	KindSerialization
	// KindOther covers everything else, contextualized.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSerialization:
		return "serialization"
	default:
		return "other"
	}
}

// Error is the error type returned by Store operations. It always names
// the operation that failed and wraps the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Error returns the message of the errors.Wrapf-wrapped cause, which
// already carries the operation (and path, once known).
func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, op string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Wrapf(err, "store: %s", op)}
}

func newPathError(kind Kind, err error, op, path string) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: errors.Wrapf(err, "store: %s %s", op, path)}
}
