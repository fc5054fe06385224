package auth

import (
	"context"
	"time"

	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/redact"
	"github.com/golang-jwt/jwt/v5"
)

// tokenVerifier is the Verifier implementation built on golang-jwt.
type tokenVerifier struct {
	root      TrustRoot
	clockSkew time.Duration    // Allowed time difference to handle clock drift
	timeFunc  func() time.Time // Injectable for testing
}

// identityClaims is the claim set we extract from verified tokens.
type identityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Ensure tokenVerifier implements Verifier.
var _ Verifier = (*tokenVerifier)(nil)

// NewVerifier creates a Verifier for the given trust root.
func NewVerifier(root TrustRoot) Verifier {
	return &tokenVerifier{
		root:      root,
		clockSkew: 2 * time.Minute,
		timeFunc:  time.Now,
	}
}

// Verify validates a bearer token against the configured trust root.
//
// The rejection is deliberately uniform: the caller learns that the token
// was rejected, never which check rejected it. Details go to the debug log
// only, with token material redacted.
func (v *tokenVerifier) Verify(ctx context.Context, authorizationHeader string) (*Identity, error) {
	log := logger.FromContext(ctx)

	tokenString, err := bearerToken(authorizationHeader)
	if err != nil {
		log.Debug("credential extraction failed", "issuer", v.root.Issuer)
		return nil, err
	}

	now := v.timeFunc()
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.root.Keys.Methods()),
		jwt.WithIssuer(v.root.Issuer),
		jwt.WithAudience(v.root.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&identityClaims{},
		v.root.Keys.Keyfunc(ctx),
		parserOpts...)
	if err != nil {
		log.Debug("token validation failed",
			"issuer", v.root.Issuer,
			"error", redact.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		log.Debug("token validation failed: invalid claims", "issuer", v.root.Issuer)
		return nil, ErrInvalidToken
	}

	log.Debug("token validated",
		"issuer", v.root.Issuer,
		"subject", claims.Subject)

	return &Identity{
		Issuer:  v.root.Issuer,
		Subject: claims.Subject,
		Email:   claims.Email,
	}, nil
}
