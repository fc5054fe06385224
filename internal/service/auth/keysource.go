package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeySource supplies the key material a trust root validates signatures
// against. Each trust root owns its own KeySource; cached material is never
// shared across roots.
type KeySource interface {
	// Keyfunc returns a jwt.Keyfunc resolving this source's key material.
	// The context bounds any key-discovery network call.
	Keyfunc(ctx context.Context) jwt.Keyfunc

	// Methods lists the signing algorithm names this source accepts.
	Methods() []string
}

// StaticSecretSource validates HMAC-signed tokens against a shared secret.
// Used for the internal task-queue issuer, where this process also mints the
// tokens.
type StaticSecretSource struct {
	secret []byte
}

var _ KeySource = (*StaticSecretSource)(nil)

// NewStaticSecretSource creates a key source for the given HMAC secret.
func NewStaticSecretSource(secret []byte) *StaticSecretSource {
	return &StaticSecretSource{secret: secret}
}

// Keyfunc returns the shared secret after checking the signing method.
func (s *StaticSecretSource) Keyfunc(_ context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}
}

// Methods returns the accepted signing algorithm names.
func (s *StaticSecretSource) Methods() []string {
	return []string{jwt.SigningMethodHS256.Name}
}

// RemoteCertSource validates RSA-signed tokens against an issuer's
// public-certificate discovery endpoint: a JSON document mapping key ids to
// PEM-encoded x509 certificates. Fetched certificates are cached for a
// bounded period to keep verification off the network on the hot path.
type RemoteCertSource struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

var _ KeySource = (*RemoteCertSource)(nil)

// NewRemoteCertSource creates a key source fetching certificates from url,
// reusing them for at most ttl. A nil httpClient uses a default with a
// 10-second timeout.
func NewRemoteCertSource(url string, ttl time.Duration, httpClient *http.Client) *RemoteCertSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RemoteCertSource{
		url:        url,
		ttl:        ttl,
		httpClient: httpClient,
	}
}

// Keyfunc resolves the token's kid header against the fetched certificates.
func (s *RemoteCertSource) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}

		keys, err := s.certs(ctx)
		if err != nil {
			return nil, err
		}

		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("no certificate for kid %q", kid)
		}
		return key, nil
	}
}

// Methods returns the accepted signing algorithm names.
func (s *RemoteCertSource) Methods() []string {
	return []string{jwt.SigningMethodRS256.Name}
}

// certs returns the cached certificate set, refreshing it when stale.
func (s *RemoteCertSource) certs(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil && time.Since(s.fetchedAt) < s.ttl {
		return s.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build certificate request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch certificates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certificate endpoint returned status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode certificate document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, pemCert := range raw {
		key, err := parseCertificateKey([]byte(pemCert))
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate for kid %q: %w", kid, err)
		}
		keys[kid] = key
	}

	s.keys = keys
	s.fetchedAt = time.Now()
	return s.keys, nil
}

// parseCertificateKey extracts the RSA public key from a PEM-encoded x509
// certificate.
func parseCertificateKey(pemCert []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemCert)
	if block == nil {
		return nil, errors.New("not PEM encoded")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}

	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate carries a %T, not an RSA key", cert.PublicKey)
	}
	return key, nil
}
