// Package errs contains sentinel errors and the classified API error used across layers.
package errs

import "errors"

// Classification sentinels. An *APIError matches exactly one of them via errors.Is.
var (
	// ErrValidation indicates malformed input, caught locally or rejected with 400.
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates a rejected or missing credential (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the backend throttled the caller (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a backend failure (5xx).
	ErrServer = errors.New("server error")

	// ErrNetwork indicates that no response reached the client.
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates the client-enforced request deadline elapsed.
	ErrTimeout = errors.New("timeout")

	// ErrRequest indicates any other rejected request (4xx not listed above).
	ErrRequest = errors.New("request rejected")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrForbidden indicates the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates the resource is not in a state that allows the change.
	ErrConflict = errors.New("conflict")
)
