package shared

import "errors"

// Domain errors. These are expected, recoverable outcomes for callers and are
// never treated as incidents.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses never reveal which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates login against a deactivated account.
	ErrInactiveAccount = errors.New("account is inactive")
	// ErrDuplicateEmail indicates registration with an already-used email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidRole indicates a role reference that does not exist.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidSession indicates an unknown session token.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionExpired indicates a known but no longer active session.
	ErrSessionExpired = errors.New("session expired")
	// ErrPasswordMismatch indicates a password change without a matching confirmation.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrDuplicateRule indicates a second access rule for the same (role, element) pair.
	ErrDuplicateRule = errors.New("access rule already exists for role and element")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Infrastructure errors. The only category fatal to the current operation.
var (
	// ErrStoreTimeout indicates a storage call exceeded its bounded deadline.
	ErrStoreTimeout = errors.New("store timeout")
	// ErrPersistence indicates a non-recoverable storage failure.
	ErrPersistence = errors.New("persistence failure")
)
