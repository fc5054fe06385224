package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrStoreUnavailable is returned when the persistence layer cannot be
	// reached. It propagates as a hard failure; callers never reply with
	// partial state.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrThreadNotFound indicates that no thread record exists for the
	// requested thread ID. This is the normal first-message path for a new
	// conversation, not an error condition for most callers.
	ErrThreadNotFound = fmt.Errorf("%w: thread", ErrNotFound)

	// ErrCredentialNotFound indicates that the user has not provisioned a
	// generation-API key. Callers branch on it to prompt provisioning or to
	// apply the shared-fallback policy.
	ErrCredentialNotFound = fmt.Errorf("%w: credential", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
