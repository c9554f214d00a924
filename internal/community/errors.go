package community

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired gates every mutating operation; reads never return it.
	ErrAuthRequired = errors.New("community: sign in required")
	// ErrNotOwner means the actor's user id does not match the entity's.
	ErrNotOwner = errors.New("community: not the author")
	// ErrNotFound covers posts, comments and replies missing from local
	// state.
	ErrNotFound = errors.New("community: not found")
)

// ValidationError rejects an input before any state change happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("community: invalid %s: %s", e.Field, e.Reason)
}

// RemoteFailure wraps a failed document-store call. For writes the
// optimistic local change has already been rolled back by the time the
// caller sees this.
type RemoteFailure struct {
	Op    string
	Write bool
	Err   error
}

func (e *RemoteFailure) Error() string {
	kind := "read"
	if e.Write {
		kind = "write"
	}
	return fmt.Sprintf("community: remote %s failed during %s: %v", kind, e.Op, e.Err)
}

func (e *RemoteFailure) Unwrap() error { return e.Err }

func readFailure(op string, err error) error {
	return &RemoteFailure{Op: op, Err: err}
}

func writeFailure(op string, err error) error {
	return &RemoteFailure{Op: op, Write: true, Err: err}
}
