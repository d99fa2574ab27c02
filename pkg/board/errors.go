package board

import "errors"

// Error kinds surfaced by the mutation service. Handlers map these onto
// HTTP statuses; none of them leaves partially mutated state behind.
var (
	// ErrUnauthenticated means no verified principal accompanied the call.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the principal is not the node's author.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotFound means the thread or node id did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input violated a content invariant.
	ErrValidation = errors.New("validation failed")
	// ErrStorage wraps a persistence failure.
	ErrStorage = errors.New("storage failure")
)
