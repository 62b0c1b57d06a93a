package domain

import "fmt"

// InvariantError reports a violation of a domain invariant (§3, §8).
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string { return e.msg }

func newInvariantError(format string, args ...any) *InvariantError {
	return &InvariantError{msg: fmt.Sprintf(format, args...)}
}
