package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fablebot/fable-api/internal/config"
	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenMinter issues signed identity assertions for background-task
// deliveries. The minted token is scoped to the worker endpoint's audience so
// the worker's Verifier can validate it against the queue trust root.
type TokenMinter interface {
	// Mint returns a signed token valid for the configured lifetime.
	Mint(ctx context.Context) (string, error)
}

// hmacTokenMinter signs delivery tokens with the queue trust root's shared
// secret using HMAC-SHA256.
type hmacTokenMinter struct {
	signingKey []byte
	issuer     string
	audience   string
	lifetime   time.Duration
	timeFunc   func() time.Time // Injectable for testing
}

var _ TokenMinter = (*hmacTokenMinter)(nil)

// NewTokenMinter creates a TokenMinter for the given trust root
// configuration. The root must carry a static signing secret.
func NewTokenMinter(cfg config.TrustRootConfig, lifetime time.Duration) (TokenMinter, error) {
	if cfg.SigningSecret == "" {
		return nil, ErrNoSigningSecret
	}
	if lifetime <= 0 {
		lifetime = 15 * time.Minute
	}

	return &hmacTokenMinter{
		signingKey: []byte(cfg.SigningSecret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		lifetime:   lifetime,
		timeFunc:   time.Now,
	}, nil
}

// Mint creates a signed token asserting the task queue's identity.
func (m *hmacTokenMinter) Mint(ctx context.Context) (string, error) {
	log := logger.FromContext(ctx)
	now := m.timeFunc()

	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   "task-dispatcher",
		Audience:  jwt.ClaimStrings{m.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		log.Error("failed to sign delivery token",
			"error", err,
			"audience", m.audience)
		return "", fmt.Errorf("failed to sign delivery token: %w", err)
	}

	return signed, nil
}
