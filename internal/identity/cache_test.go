package identity

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

func testUser() *api.User {
	return &api.User{ID: "u1", DisplayName: "Test Listener", Email: "listener@example.com"}
}

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	return NewCache(filepath.Join(t.TempDir(), "identity.cache"), "test_cache_key", ttl)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t, time.Minute)

	if err := cache.Write(testUser()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	user, err := cache.Read()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if user.ID != "u1" || user.DisplayName != "Test Listener" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestCacheEncryptedAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.cache")
	cache := NewCache(path, "test_cache_key", time.Minute)

	if err := cache.Write(testUser()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read cache file: %v", err)
	}
	for _, plaintext := range []string{"u1", "Test Listener", "listener@example.com"} {
		if bytes.Contains(raw, []byte(plaintext)) {
			t.Errorf("cache file leaks plaintext %q", plaintext)
		}
	}
}

func TestCacheMisses(t *testing.T) {
	t.Run("AbsentFile", func(t *testing.T) {
		cache := newTestCache(t, time.Minute)

		if _, err := cache.Read(); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("ExpiredRecord", func(t *testing.T) {
		cache := newTestCache(t, time.Minute)
		if err := cache.Write(testUser()); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		if _, err := cache.Read(); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss for expired record, got %v", err)
		}
		// Expired records are purged, not retried later.
		if _, err := os.Stat(cache.path); !os.IsNotExist(err) {
			t.Error("expected expired cache file removed")
		}
	})

	t.Run("CorruptRecord", func(t *testing.T) {
		cache := newTestCache(t, time.Minute)
		if err := os.WriteFile(cache.path, []byte("not ciphertext"), 0o600); err != nil {
			t.Fatalf("failed to plant corrupt file: %v", err)
		}

		if _, err := cache.Read(); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss for corrupt record, got %v", err)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "identity.cache")
		writer := NewCache(path, "key_one", time.Minute)
		if err := writer.Write(testUser()); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		reader := NewCache(path, "key_two", time.Minute)
		if _, err := reader.Read(); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss with wrong key, got %v", err)
		}
	})
}

func TestCachePurge(t *testing.T) {
	cache := newTestCache(t, time.Minute)

	if err := cache.Purge(); err != nil {
		t.Errorf("purging an absent cache should not fail: %v", err)
	}

	if err := cache.Write(testUser()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := cache.Purge(); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if _, err := cache.Read(); !errors.Is(err, shared.ErrCacheMiss) {
		t.Error("expected miss after purge")
	}
}

func TestCacheWriteNilUser(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	if err := cache.Write(nil); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}
