package auth

import "errors"

// Common authentication errors.
//
// Verification deliberately collapses every failure mode (bad signature,
// wrong issuer, wrong audience, expiry, unreachable key endpoint) into
// ErrInvalidToken so callers cannot build an oracle out of the rejection.
var (
	// ErrMissingCredential is returned when the Authorization header is
	// absent or is not exactly a scheme and a token part.
	ErrMissingCredential = errors.New("missing or malformed authorization header")

	// ErrInvalidToken is returned for any token that fails verification,
	// regardless of which check failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoSigningSecret is returned when a token minter is constructed for
	// a trust root that has no static signing secret.
	ErrNoSigningSecret = errors.New("trust root has no signing secret")
)
