package conversation

import "errors"

// Error definitions for conversation operations.
var (
	// ErrUnprovisioned indicates the user has no stored API key and the
	// shared fallback is disabled. Handlers turn it into the provisioning
	// prompt rather than a failure.
	ErrUnprovisioned = errors.New("user has no API key provisioned")

	// ErrDeferFailed indicates a deferred operation could not be queued.
	ErrDeferFailed = errors.New("failed to defer operation")
)
