// Package clustererr implements the error taxonomy from spec §7: a
// small set of Kinds distinguishing what the caller/parent action
// should do with a failure (fail, retry, surface distinctly), plus the
// RES_* result codes from §4.3 that ride alongside them.
package clustererr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure per §7's taxonomy.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient"  // retried by the caller per its own policy
	KindLockBusy   Kind = "lock_busy"  // not an error; caller should RES_RETRY
	KindCancelled  Kind = "cancelled"
	KindTimeout    Kind = "timeout"
	KindPolicyVeto Kind = "policy_veto"
	KindInternal   Kind = "internal"
)

// Error is a clusterd error carrying a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the Kind of err, walking the Unwrap chain. Returns
// KindInternal if neither err nor anything in its chain is a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// Is reports whether err's Kind (walking Unwrap) equals kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

var (
	// ErrLockBusy is returned by the Lock Manager when a cluster/node
	// lock is held and the caller did not request a forced steal.
	ErrLockBusy = New(KindLockBusy, "lock is busy")
	// ErrNotFound is a generic not-found sentinel repositories may wrap.
	ErrNotFound = New(KindNotFound, "not found")
)
