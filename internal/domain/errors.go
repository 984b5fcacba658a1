package domain

import "errors"

// Error kinds surfaced by the core. Transport adapters map these to
// status codes (see internal/httpapi/problem.go). AuthCore logs storage
// failures and returns ErrStorage in their place; other unexpected
// failures (hashing, token encoding) are returned wrapped and map to 500.
var (
	// ErrInvalidInput means the payload failed schema/semantic validation
	// (e.g. a malformed email).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials covers both "no such user" and "wrong
	// password" — the two are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken covers bad signature, malformed structure, missing
	// claims, expiry, and reuse detection alike. Collapsing all of these
	// into one error avoids giving an attacker a decode oracle.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmailTaken is returned by sign_up when the unique email
	// constraint rejects the insert.
	ErrEmailTaken = errors.New("email already registered")

	// ErrStorage wraps an opaque persistence failure. Callers log the
	// wrapped detail and surface only this sentinel to clients.
	ErrStorage = errors.New("storage error")

	// ErrUserNotFound is an internal signal from CredentialStore; AuthCore
	// never lets it escape directly (it is folded into ErrInvalidCredentials).
	ErrUserNotFound = errors.New("user not found")

	// ErrFamilyNotFound is returned by LookupJIT when no family has the
	// given jit as current, by GetFamily when the family row does not
	// exist, and by UpsertFamily when a compare-and-set finds no family
	// row with the expected current jit.
	ErrFamilyNotFound = errors.New("refresh token family not found")
)
