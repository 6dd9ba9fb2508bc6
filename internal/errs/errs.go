// Package errs provides the typed error-kind model shared by every Sluice
// component (spec §7). A Kind classifies the failure so transports can map
// it to a wire-level status without parsing message text, the way
// eventlog.ErrNotFound is matched by callers in the teacher codebase.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and client retry logic.
type Kind int

const (
	// Internal is the zero value, for errors that don't carry a kind yet.
	Internal Kind = iota
	InvalidArgument
	NotFound
	ResourceExhausted
	Unavailable
	FailedPrecondition
	Cancelled
)

// String renders the kind's wire name.
func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case ResourceExhausted:
		return "ResourceExhausted"
	case Unavailable:
		return "Unavailable"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Cancelled:
		return "Cancelled"
	default:
		return "Internal"
	}
}

// Error is a Kind-tagged error. Components construct these at the boundary
// where the failure is first understood; callers further up the stack match
// on Kind via errors.As/Is rather than string comparison.
type Error struct {
	Kind Kind
	Op   string // component/operation that raised it, e.g. "writer.Publish"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind-tagged error wrapping msg.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap tags an existing error with a Kind. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Sentinel errors matched by the storage and writer layers, mirroring
// eventlog.ErrNotFound in the teacher's event log package.
var (
	ErrTopicNotFound  = New(NotFound, "", "topic not found")
	ErrGroupNotFound  = New(NotFound, "", "consumer group not found")
	ErrCursorNotFound = New(NotFound, "", "cursor not found")
	ErrClosed         = New(Unavailable, "", "closed")
)
