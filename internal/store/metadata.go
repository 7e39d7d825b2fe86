package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const apiTokenKey = "api_token_hash"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetAPIToken stores the bcrypt hash of token. An empty token clears it.
func (s *Store) SetAPIToken(ctx context.Context, token string) error {
	if token == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, apiTokenKey)
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.SetMetadata(ctx, apiTokenKey, string(hash))
}

// GenerateAPIToken creates a random token, stores its hash and returns it.
func (s *Store) GenerateAPIToken(ctx context.Context) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.SetAPIToken(ctx, token); err != nil {
		return "", err
	}
	return token, nil
}

// HasAPIToken reports whether an API token is configured.
func (s *Store) HasAPIToken(ctx context.Context) (bool, error) {
	hash, err := s.GetMetadata(ctx, apiTokenKey)
	return hash != "", err
}

// VerifyAPIToken reports whether token matches the stored hash.
// It returns false when no token is configured.
func (s *Store) VerifyAPIToken(ctx context.Context, token string) (bool, error) {
	hash, err := s.GetMetadata(ctx, apiTokenKey)
	if err != nil || hash == "" {
		return false, err
	}
	return s.verified.verify(hash, token)
}

// verifiedToken remembers the SHA-256 digest of the last token that passed
// bcrypt against a given hash. Repeat requests with the same bearer token
// then cost one constant-time compare instead of a bcrypt round. A new hash
// invalidates the entry.
type verifiedToken struct {
	mu     sync.Mutex
	hash   string
	digest [sha256.Size]byte
}

func (v *verifiedToken) verify(hash, token string) (bool, error) {
	digest := sha256.Sum256([]byte(token))

	v.mu.Lock()
	hit := v.hash == hash && subtle.ConstantTimeCompare(v.digest[:], digest[:]) == 1
	v.mu.Unlock()
	if hit {
		return true, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	v.mu.Lock()
	v.hash, v.digest = hash, digest
	v.mu.Unlock()
	return true, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// StaticToken verifies bearer tokens against a hash held in memory. It
// serves the API token when sessions are not persisted.
type StaticToken struct {
	hash     string
	verified verifiedToken
}

// NewStaticToken hashes token for later verification.
func NewStaticToken(token string) (*StaticToken, error) {
	if token == "" {
		return nil, errors.New("empty API token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &StaticToken{hash: string(hash)}, nil
}

func (s *StaticToken) VerifyAPIToken(_ context.Context, token string) (bool, error) {
	return s.verified.verify(s.hash, token)
}
