package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyClaimed is returned when a claim races and loses.
	ErrAlreadyClaimed = errors.New("task already claimed")
	// ErrNotClaimant is returned when releasing a task claimed by someone else.
	ErrNotClaimant = errors.New("task claimed by another user")
	// ErrDuplicateSource is returned when an inbound item's source id was already processed.
	ErrDuplicateSource = errors.New("source already processed")
)
