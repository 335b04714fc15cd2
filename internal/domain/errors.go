// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrPermissionDenied indicates the agent lacks a required permission.
// Callers must treat this as fatal to the current request.
var ErrPermissionDenied = errors.New("permission denied")

// ErrAlreadyResolved indicates a review request was not pending when a
// reviewer tried to resolve it.
var ErrAlreadyResolved = errors.New("review already resolved")

// ErrNotApproved indicates the referenced review is not in the approved state.
var ErrNotApproved = errors.New("review not approved")

// ErrTokenUsed indicates the single-use commit token was already consumed.
var ErrTokenUsed = errors.New("commit token already used")

// ErrInvalidStatus indicates an entity lifecycle transition was attempted
// from a state that does not permit it.
var ErrInvalidStatus = errors.New("invalid status for transition")
