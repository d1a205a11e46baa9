// Package faults defines the error taxonomy shared by the assessment engine.
// Handlers map these onto HTTP status codes; services return them unwrapped
// or wrapped with %w so errors.As keeps working.
package faults

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError reports a missing attempt, config, item or profile.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// InvalidTransitionError reports a state-machine operation attempted from a
// state that does not permit it. The message carries both states so clients
// can see what they raced against.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from state %q", e.Attempted, e.Current)
}

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports an operation on a resource the caller does not own.
type AuthorizationError struct {
	UserID   string
	Resource string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q is not authorized for %s", e.UserID, e.Resource)
}

// ExpiredAttemptError reports access to an attempt past its deadline.
type ExpiredAttemptError struct {
	AttemptID string
	ExpiredAt time.Time
}

func (e *ExpiredAttemptError) Error() string {
	return fmt.Sprintf("attempt %q expired at %s", e.AttemptID, e.ExpiredAt.UTC().Format(time.RFC3339))
}

// CreationError reports that the item bank could not supply enough approved
// items for a section even after widening the difficulty band.
type CreationError struct {
	Section   string
	Requested int
	Available int
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("item bank cannot supply %d items for section %q (have %d after widening)",
		e.Requested, e.Section, e.Available)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

func IsExpired(err error) bool {
	var ex *ExpiredAttemptError
	return errors.As(err, &ex)
}
