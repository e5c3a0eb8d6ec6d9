package auth

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// KeyProvider supplies realm public signing keys as PEM strings. The
// keycloak client satisfies this interface.
type KeyProvider interface {
	RealmPublicKey(ctx context.Context, realm string) (string, error)
}

// keyCacheEntry stores a parsed realm key and the time it was fetched.
type keyCacheEntry struct {
	key       *rsa.PublicKey
	fetchedAt time.Time
}

// keyCache caches realm public keys fetched from the identity provider,
// parsed and ready for signature verification. Keys are cached per realm
// and refetched after the configured TTL expires.
//
// keyCache is safe for concurrent use by multiple goroutines.
type keyCache struct {
	mu       sync.RWMutex
	entries  map[string]*keyCacheEntry
	ttl      time.Duration
	provider KeyProvider
}

// newKeyCache creates a key cache with the given TTL and provider.
func newKeyCache(ttl time.Duration, provider KeyProvider) *keyCache {
	return &keyCache{
		entries:  make(map[string]*keyCacheEntry),
		ttl:      ttl,
		provider: provider,
	}
}

// get returns the realm's public key, fetching it from the provider when
// the cache has no fresh entry.
func (c *keyCache) get(ctx context.Context, realm string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	entry, ok := c.entries[realm]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.key, nil
	}

	pemKey, err := c.provider.RealmPublicKey(ctx, realm)
	if err != nil {
		// A stale key beats no key when the provider is down.
		if ok {
			return entry.key, nil
		}
		return nil, err
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeInternal, "auth: realm %q public key is not a valid RSA key", realm)
	}

	c.mu.Lock()
	c.entries[realm] = &keyCacheEntry{key: key, fetchedAt: time.Now()}
	c.mu.Unlock()

	return key, nil
}

// invalidate drops the cached key for a realm, forcing a refetch on the
// next get. Used after a signature verification failure to pick up a
// rotated realm key.
func (c *keyCache) invalidate(realm string) {
	c.mu.Lock()
	delete(c.entries, realm)
	c.mu.Unlock()
}
