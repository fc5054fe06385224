package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fablebot/fable-api/internal/config"
)

// Identity describes the caller a verified token asserts.
type Identity struct {
	// Issuer is the trust root's expected issuer string.
	Issuer string

	// Subject is the token's subject claim.
	Subject string

	// Email is the token's email claim, if present.
	Email string
}

// Verifier validates bearer tokens against one configured trust root.
//
// Two independent verifiers exist in the application: one for the chat
// platform's issuer and one for the task queue's issuer. They never share
// cached key material.
type Verifier interface {
	// Verify extracts the bearer token from the Authorization header value
	// and validates signature, expiry, audience and issuer against the trust
	// root. Returns ErrMissingCredential for an absent or malformed header
	// and ErrInvalidToken for every other failure.
	Verify(ctx context.Context, authorizationHeader string) (*Identity, error)
}

// TrustRoot is one issuer/audience/key-material configuration tokens are
// validated against.
type TrustRoot struct {
	Issuer   string
	Audience string
	Keys     KeySource
}

// NewTrustRoot builds a TrustRoot from configuration, choosing the key
// source from whichever of cert_url or signing_secret is set.
func NewTrustRoot(cfg config.TrustRootConfig) (TrustRoot, error) {
	var keys KeySource
	switch {
	case cfg.SigningSecret != "":
		keys = NewStaticSecretSource([]byte(cfg.SigningSecret))
	case cfg.CertURL != "":
		ttl := time.Duration(cfg.CertCacheSeconds) * time.Second
		keys = NewRemoteCertSource(cfg.CertURL, ttl, nil)
	default:
		return TrustRoot{}, errors.New("trust root needs either cert_url or signing_secret")
	}

	return TrustRoot{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Keys:     keys,
	}, nil
}

// bearerToken extracts the token part of an Authorization header value.
// The header must contain exactly a scheme and a token part.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrMissingCredential
	}

	return parts[1], nil
}
