package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/store"
)

// secretbox parameters for credential encryption at rest.
const (
	nonceSize     = 24
	cipherKeySize = 32
)

// ErrBadCipherKey indicates the configured cipher key is not a 64-character
// hex string.
var ErrBadCipherKey = errors.New("credential cipher key must be 64 hex characters")

// PostgresCredentialStore implements the store.CredentialStore interface
// using a PostgreSQL database as the storage backend. API keys are sealed
// with NaCl secretbox before they touch the database; only the ciphertext
// and its nonce are stored.
type PostgresCredentialStore struct {
	db  store.DBTX
	key [cipherKeySize]byte
}

// NewPostgresCredentialStore creates a new PostgreSQL implementation of the
// CredentialStore interface. cipherKeyHex is the 64-character hex encoding
// of the 32-byte secretbox key.
func NewPostgresCredentialStore(db store.DBTX, cipherKeyHex string) (*PostgresCredentialStore, error) {
	if db == nil {
		panic("db cannot be nil")
	}

	raw, err := hex.DecodeString(cipherKeyHex)
	if err != nil || len(raw) != cipherKeySize {
		return nil, ErrBadCipherKey
	}

	s := &PostgresCredentialStore{db: db}
	copy(s.key[:], raw)
	return s, nil
}

// Ensure PostgresCredentialStore implements store.CredentialStore
var _ store.CredentialStore = (*PostgresCredentialStore)(nil)

// GetAPIKey returns the decrypted key for the user.
// Returns store.ErrCredentialNotFound if the user is unprovisioned.
func (s *PostgresCredentialStore) GetAPIKey(ctx context.Context, userID string) (string, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT api_key_sealed
		FROM credentials
		WHERE user_id = $1
	`

	var sealed []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrCredentialNotFound
		}
		log.Error("failed to get credential",
			"user_id", userID,
			"error", err)
		return "", fmt.Errorf("failed to get credential: %w", err)
	}

	apiKey, err := s.open(sealed)
	if err != nil {
		log.Error("failed to unseal credential",
			"user_id", userID,
			"error", err)
		return "", fmt.Errorf("failed to unseal credential: %w", err)
	}
	return apiKey, nil
}

// SaveAPIKey seals and stores the key for the user, overwriting any
// existing record.
func (s *PostgresCredentialStore) SaveAPIKey(ctx context.Context, userID, apiKey string) error {
	log := logger.FromContext(ctx)

	if userID == "" {
		return fmt.Errorf("%w: user id cannot be empty", store.ErrInvalidEntity)
	}
	if apiKey == "" {
		return fmt.Errorf("%w: api key cannot be empty", store.ErrInvalidEntity)
	}

	sealed, err := s.seal(apiKey)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}

	query := `
		INSERT INTO credentials (user_id, api_key_sealed, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET api_key_sealed = $2, updated_at = $3
	`

	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, query, userID, sealed, now); err != nil {
		log.Error("failed to save credential",
			"user_id", userID,
			"error", err)
		return fmt.Errorf("failed to save credential: %w", err)
	}

	log.Debug("saved credential", "user_id", userID)
	return nil
}

// seal encrypts the key, prefixing the ciphertext with its random nonce.
func (s *PostgresCredentialStore) seal(apiKey string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(apiKey), &nonce, &s.key), nil
}

// open decrypts a nonce-prefixed ciphertext produced by seal.
func (s *PostgresCredentialStore) open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize {
		return "", errors.New("sealed credential too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("credential cannot be decrypted with the configured key")
	}
	return string(plain), nil
}
