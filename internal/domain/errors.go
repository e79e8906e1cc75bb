package domain

import "errors"

var (
	// ErrStoreUnavailable marks failures reaching the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrQueryRejected marks statements the store refused, constraint
	// violations included. The store's message is propagated verbatim.
	ErrQueryRejected = errors.New("query rejected")
	// ErrInvalidCredentials is returned when no user matches a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a subject lookup finds no row.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoPrediction is returned when a user has no phase predictions yet.
	ErrNoPrediction = errors.New("no phase prediction recorded")
)
