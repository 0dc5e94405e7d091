package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"eventcraft/internal/models"
)

// KeyPrefix starts every raw API key so leaked keys are recognisable.
const KeyPrefix = "ec_"

// APIKeyStore manages hashed API keys.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore creates a new APIKeyStore with the given database connection.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// HashKey returns the hex BLAKE2b-256 digest stored for a raw key.
func HashKey(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateKey returns a new random raw key.
func generateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

// Create issues a key for the user. The raw key is returned once; only
// its hash is stored.
func (s *APIKeyStore) Create(ctx context.Context, userID uuid.UUID, label string) (string, *models.APIKey, error) {
	raw, err := generateKey()
	if err != nil {
		return "", nil, err
	}

	k := &models.APIKey{UserID: userID, KeyHash: HashKey(raw), Label: label}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (user_id, key_hash, label)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, userID, k.KeyHash, label).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("create api key: %w", err)
	}
	return raw, k, nil
}

// Resolve returns the owner of an active raw key and stamps its
// last_used_at. Returns nil if the key is unknown or revoked.
func (s *APIKeyStore) Resolve(ctx context.Context, raw string) (*models.User, error) {
	if !strings.HasPrefix(raw, KeyPrefix) {
		return nil, nil
	}
	hash := HashKey(raw)

	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.role, u.plan, u.credits, u.created_at
		FROM api_keys k JOIN users u ON u.id = k.user_id
		WHERE k.key_hash = $1 AND k.revoked_at IS NULL
	`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve api key: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE key_hash = $1`, hash); err != nil {
		return nil, fmt.Errorf("touch api key: %w", err)
	}
	return u, nil
}

// ListByUser returns the user's keys, newest first.
func (s *APIKeyStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, label, last_used_at, revoked_at, created_at
		FROM api_keys WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Label, &k.LastUsedAt, &k.RevokedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ActiveHashes returns the hashes of the user's unrevoked keys.
func (s *APIKeyStore) ActiveHashes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key_hash FROM api_keys
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api key hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan api key hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// Revoke disables one of the user's keys and returns its hash so
// callers can evict cached resolutions.
func (s *APIKeyStore) Revoke(ctx context.Context, userID, keyID uuid.UUID) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		UPDATE api_keys SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
		RETURNING key_hash
	`, keyID, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("revoke api key: %w", err)
	}
	return hash, nil
}
