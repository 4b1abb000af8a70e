package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultCacheTTL bounds how long a loaded credential may be reused
const DefaultCacheTTL = 5 * time.Minute

// Cache is an opt-in, short-lived credential cache keyed by bundle
// identity. Entries expire after the TTL; expiry is checked on every
// lookup, never in the background. The cache is owned by its caller,
// not ambient state.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	cred      *Credential
	expiresAt time.Time
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithClock injects the clock used for expiry checks
func WithClock(clock clockwork.Clock) CacheOption {
	return func(c *Cache) {
		c.clock = clock
	}
}

// NewCache creates a credential cache with the given TTL
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns a cached credential for the bundle or decodes and
// caches a fresh one
func (c *Cache) Load(bundle []byte, passphrase string) (*Credential, error) {
	key := bundleKey(bundle, passphrase)
	now := c.clock.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		cred := entry.cred
		c.mu.Unlock()
		return cred, nil
	}
	delete(c.entries, key)
	c.mu.Unlock()

	cred, err := Load(bundle, passphrase)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{cred: cred, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return cred, nil
}

// Purge drops all cached credentials
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

func bundleKey(bundle []byte, passphrase string) string {
	h := sha256.New()
	h.Write(bundle)
	h.Write([]byte{0})
	h.Write([]byte(passphrase))
	return hex.EncodeToString(h.Sum(nil))
}
