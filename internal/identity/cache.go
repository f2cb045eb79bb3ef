// Package identity manages the authenticated identity: an encrypted,
// time-boxed local cache that serves stale-but-useful data instantly, and a
// manager that silently re-validates it against the identity service.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
	"golang.org/x/crypto/chacha20poly1305"
)

// DefaultCacheTTL bounds how long a cached identity is served without
// re-verification.
const DefaultCacheTTL = 2 * time.Minute

// Record is the plaintext cache payload.
type Record struct {
	User      *api.User `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache stores one identity record encrypted at rest. A record older than
// the TTL is never returned as valid; an invalid or unparseable record is
// treated as a miss and purged.
type Cache struct {
	path string
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

// NewCache creates an identity cache at path. The encryption key is derived
// from the configured cache key string; ttl defaults to [DefaultCacheTTL].
func NewCache(path, cacheKey string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	sum := sha256.Sum256([]byte(cacheKey))

	return &Cache{
		path: path,
		key:  sum[:],
		ttl:  ttl,
		now:  time.Now,
	}
}

// Read returns the cached identity, or [shared.ErrCacheMiss] if the record
// is absent, unparseable, or older than the TTL. Stale and corrupt records
// are purged.
func (c *Cache) Read() (*api.User, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, shared.ErrCacheMiss
	}

	plaintext, err := c.decrypt(data)
	if err != nil {
		c.Purge()
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheMiss, err)
	}

	var record Record
	if err := json.Unmarshal(plaintext, &record); err != nil || record.User == nil {
		c.Purge()
		return nil, fmt.Errorf("%w: unparseable record", shared.ErrCacheMiss)
	}

	if c.now().Sub(record.Timestamp) > c.ttl {
		c.Purge()
		return nil, fmt.Errorf("%w: expired", shared.ErrCacheMiss)
	}

	return record.User, nil
}

// Write stores the identity with the current timestamp, encrypted.
func (c *Cache) Write(user *api.User) error {
	if user == nil {
		return fmt.Errorf("%w: user", shared.ErrMissingArgument)
	}

	plaintext, err := json.Marshal(Record{User: user, Timestamp: c.now()})
	if err != nil {
		return fmt.Errorf("failed to encode cache record: %w", err)
	}

	ciphertext, err := c.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt cache record: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	if err := os.WriteFile(c.path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	return nil
}

// Purge removes the cache entry. Missing files are not an error.
func (c *Cache) Purge() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}

func (c *Cache) encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cache) decrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]

	return aead.Open(nil, nonce, ciphertext, nil)
}
