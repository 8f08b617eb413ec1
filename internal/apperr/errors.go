// Package apperr holds the error taxonomy shared by repositories, services
// and handlers. Callers match with errors.Is against either a specific error
// or its category.
package apperr

import (
	"errors"
	"fmt"
)

// Categories.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrStoreFailure = errors.New("store failure")
)

var (
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)

	ErrAlreadyFollowing = fmt.Errorf("%w: already following", ErrConflict)
	ErrAlreadyLiked     = fmt.Errorf("%w: already liked", ErrConflict)
	ErrAlreadyDisliked  = fmt.Errorf("%w: already disliked", ErrConflict)
	ErrUsernameTaken    = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrEmailTaken       = fmt.Errorf("%w: email already registered", ErrConflict)

	ErrNotFollowing = fmt.Errorf("not following: %w", ErrNotFound)

	ErrNotCommentAuthor   = fmt.Errorf("%w: only the comment author may do this", ErrUnauthorized)
	ErrNotPostAuthor      = fmt.Errorf("%w: only the post author may do this", ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)

	ErrSelfFollow   = fmt.Errorf("%w: cannot follow yourself", ErrInvalidInput)
	ErrEmptyComment = fmt.Errorf("%w: comment text is empty", ErrInvalidInput)
	ErrInvalidID    = fmt.Errorf("%w: malformed id", ErrInvalidInput)
)

// Invalid builds an InvalidInput error with a field-specific message.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Store wraps a persistence error so it classifies as ErrStoreFailure while
// keeping the cause reachable through errors.Unwrap.
func Store(op string, err error) error {
	return &storeError{op: op, err: err}
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.op, e.err)
}

func (e *storeError) Unwrap() []error {
	return []error{ErrStoreFailure, e.err}
}
