package store

import "context"

// CredentialStore defines the interface for persisting per-user
// generation-API keys.
type CredentialStore interface {
	// GetAPIKey returns the stored key for the user.
	// Returns ErrCredentialNotFound if the user is unprovisioned; callers
	// treat that as a normal branch, not a failure.
	GetAPIKey(ctx context.Context, userID string) (string, error)

	// SaveAPIKey stores the key for the user, creating the record if
	// necessary and otherwise overwriting it. At most one record exists per
	// user ID.
	SaveAPIKey(ctx context.Context, userID, apiKey string) error
}
