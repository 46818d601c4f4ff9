package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a post or comment id/slug does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for constructing a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransportError wraps a failure to reach a backend (database, webhook).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a *TransportError, passing nil and domain errors through.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || IsValidation(err) {
		return err
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// PostNotFound builds the NotFound error for an unknown post id or slug.
func PostNotFound(key string) error {
	return fmt.Errorf("post %q: %w", key, ErrNotFound)
}

// CommentNotFound builds the NotFound error for an unknown comment id.
func CommentNotFound(postID, commentID string) error {
	return fmt.Errorf("comment %q on post %q: %w", commentID, postID, ErrNotFound)
}
