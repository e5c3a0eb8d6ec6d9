package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// Store is the key/value backend the cache writes through to. It is
// satisfied by [*redis.Client] from pkg/clients/redis. TTL bookkeeping and
// atomicity are the store's job; the cache never tracks expiry in-process,
// so it stays correct across multiple processes sharing one store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	ClearPattern(ctx context.Context, pattern string) (int64, error)
}

// Kind names one of the cache tiers. Each tier has its own TTL because
// the underlying data changes at different rates: role membership churns
// more slowly than effective permissions, and summaries are derived data
// that can afford to be the stalest.
type Kind string

const (
	// KindPermissions caches a user's effective permission records.
	KindPermissions Kind = "perms"

	// KindRoles caches a user's role assignments.
	KindRoles Kind = "roles"

	// KindSummary caches a user's resource to action-set summary.
	KindSummary Kind = "summary"
)

// Default TTLs per cache tier.
const (
	// DefaultPermissionsTTL bounds staleness of cached permission lists.
	DefaultPermissionsTTL = 600 * time.Second

	// DefaultRolesTTL bounds staleness of cached role lists.
	DefaultRolesTTL = 900 * time.Second

	// DefaultSummaryTTL bounds staleness of cached permission summaries.
	DefaultSummaryTTL = 300 * time.Second
)

// DefaultKeyPrefix namespaces all permission cache keys in the shared
// store.
const DefaultKeyPrefix = "neo:perm"

// CacheConfig holds the tunables for a [Cache]. Zero values fall back to
// the package defaults.
type CacheConfig struct {
	// KeyPrefix namespaces cache keys in the shared store.
	// Default: "neo:perm"
	// Environment variable: PERM_CACHE_KEY_PREFIX
	KeyPrefix string `json:"key_prefix,omitempty" env:"PERM_CACHE_KEY_PREFIX"`

	// PermissionsTTL is the lifetime of cached permission lists.
	// Default: 600s
	// Environment variable: PERM_CACHE_PERMISSIONS_TTL
	PermissionsTTL time.Duration `json:"permissions_ttl,omitempty" env:"PERM_CACHE_PERMISSIONS_TTL"`

	// RolesTTL is the lifetime of cached role lists.
	// Default: 900s
	// Environment variable: PERM_CACHE_ROLES_TTL
	RolesTTL time.Duration `json:"roles_ttl,omitempty" env:"PERM_CACHE_ROLES_TTL"`

	// SummaryTTL is the lifetime of cached permission summaries.
	// Default: 300s
	// Environment variable: PERM_CACHE_SUMMARY_TTL
	SummaryTTL time.Duration `json:"summary_ttl,omitempty" env:"PERM_CACHE_SUMMARY_TTL"`
}

// DefaultCacheConfig returns a CacheConfig populated with the package
// defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		KeyPrefix:      DefaultKeyPrefix,
		PermissionsTTL: DefaultPermissionsTTL,
		RolesTTL:       DefaultRolesTTL,
		SummaryTTL:     DefaultSummaryTTL,
	}
}

// applyDefaults fills zero-valued fields with the package defaults.
func (c *CacheConfig) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.PermissionsTTL == 0 {
		c.PermissionsTTL = DefaultPermissionsTTL
	}
	if c.RolesTTL == 0 {
		c.RolesTTL = DefaultRolesTTL
	}
	if c.SummaryTTL == 0 {
		c.SummaryTTL = DefaultSummaryTTL
	}
}

// Cache is the tiered permission cache. It stores permission lists, role
// lists, and permission summaries per (user, scope) with independent TTLs.
//
// The cache is advisory. Reads that fail for any reason (store outage,
// corrupt payload) are logged and reported as misses so the caller falls
// through to the authoritative [Source]; writes that fail are logged and
// swallowed so a cache outage cannot fail a permission check. Only the
// invalidation operations surface errors, because a failed invalidation
// is a real consistency problem the caller must know about.
//
// Platform-scoped and tenant-scoped entries for the same user are
// independent keys; a hit in one scope is never substituted for the other.
type Cache struct {
	store  Store
	config *CacheConfig
	logger *slog.Logger
}

// NewCache creates a Cache over the given store. A nil config uses
// [DefaultCacheConfig]; a nil logger falls back to [slog.Default].
func NewCache(store Store, cfg *CacheConfig, logger *slog.Logger) *Cache {
	if cfg == nil {
		cfg = DefaultCacheConfig()
	} else {
		cfg.applyDefaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, config: cfg, logger: logger}
}

// GetPermissions returns the cached permission records for the user in
// the given scope. The second return is false on a miss, including any
// read failure.
func (c *Cache) GetPermissions(ctx context.Context, userID, tenantID string) ([]Record, bool) {
	var records []Record
	if !c.read(ctx, c.key(KindPermissions, userID, tenantID), &records) {
		return nil, false
	}
	return records, true
}

// SetPermissions caches the permission records for the user in the given
// scope. Failures are logged and swallowed.
func (c *Cache) SetPermissions(ctx context.Context, userID, tenantID string, records []Record) {
	c.write(ctx, c.key(KindPermissions, userID, tenantID), records, c.config.PermissionsTTL)
}

// GetRoles returns the cached roles for the user in the given scope. The
// second return is false on a miss, including any read failure.
func (c *Cache) GetRoles(ctx context.Context, userID, tenantID string) ([]Role, bool) {
	var roles []Role
	if !c.read(ctx, c.key(KindRoles, userID, tenantID), &roles) {
		return nil, false
	}
	return roles, true
}

// SetRoles caches the roles for the user in the given scope. Failures are
// logged and swallowed.
func (c *Cache) SetRoles(ctx context.Context, userID, tenantID string, roles []Role) {
	c.write(ctx, c.key(KindRoles, userID, tenantID), roles, c.config.RolesTTL)
}

// GetSummary returns the cached permission summary for the user in the
// given scope. The second return is false on a miss, including any read
// failure.
func (c *Cache) GetSummary(ctx context.Context, userID, tenantID string) (Summary, bool) {
	var summary Summary
	if !c.read(ctx, c.key(KindSummary, userID, tenantID), &summary) {
		return nil, false
	}
	return summary, true
}

// SetSummary caches the permission summary for the user in the given
// scope. [Summary] action slices are sorted and unique, so the serialized
// form is canonical. Failures are logged and swallowed.
func (c *Cache) SetSummary(ctx context.Context, userID, tenantID string, summary Summary) {
	c.write(ctx, c.key(KindSummary, userID, tenantID), summary, c.config.SummaryTTL)
}

// InvalidateUser removes every cache tier for the user in the given
// scope. Unlike reads and writes, a failure here is returned: a stale
// entry surviving an invalidation is a correctness problem.
func (c *Cache) InvalidateUser(ctx context.Context, userID, tenantID string) error {
	keys := []string{
		c.key(KindPermissions, userID, tenantID),
		c.key(KindRoles, userID, tenantID),
		c.key(KindSummary, userID, tenantID),
	}
	if _, err := c.store.Del(ctx, keys...); err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"permissions: cache invalidation failed")
	}
	return nil
}

// InvalidateRole fans a role-permission change out to every affected
// user's cache entries in the given scope. The affected user list is the
// caller's responsibility; resolve it with [Source.UsersWithRole] before
// mutating the role if needed.
//
// All users are attempted even when some invalidations fail; the first
// failure is returned after the sweep completes.
func (c *Cache) InvalidateRole(ctx context.Context, roleID, tenantID string, affectedUserIDs []string) error {
	var firstErr error
	for _, userID := range affectedUserIDs {
		if err := c.InvalidateUser(ctx, userID, tenantID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return sserr.Wrapf(firstErr, sserr.CodeUnavailableDependency,
			"permissions: role %q cache fan-out incomplete", roleID)
	}
	return nil
}

// ClearAll purges every cache entry, or every entry for one tenant when
// tenantID is non-empty. This is a pattern-based bulk delete intended for
// emergency consistency recovery, not for the normal request path.
func (c *Cache) ClearAll(ctx context.Context, tenantID string) error {
	pattern := c.config.KeyPrefix + ":*"
	if tenantID != "" {
		pattern = c.config.KeyPrefix + ":*:t:" + tenantID
	}
	if _, err := c.store.ClearPattern(ctx, pattern); err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"permissions: cache clear failed")
	}
	return nil
}

// key builds the store key for one (tier, user, scope) entry. Platform
// and tenant scopes get distinct keys so they never shadow each other.
func (c *Cache) key(kind Kind, userID, tenantID string) string {
	if tenantID == "" {
		return fmt.Sprintf("%s:%s:%s", c.config.KeyPrefix, kind, userID)
	}
	return fmt.Sprintf("%s:%s:%s:t:%s", c.config.KeyPrefix, kind, userID, tenantID)
}

// read fetches and decodes one entry. Any failure is a miss: not-found is
// the normal miss path, and operational or decode failures are logged so
// the caller falls through to the authoritative source.
func (c *Cache) read(ctx context.Context, key string, out any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !sserr.IsNotFound(err) {
			c.logger.WarnContext(ctx, "permission cache read failed, treating as miss",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.logger.WarnContext(ctx, "permission cache entry corrupt, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// write encodes and stores one entry. Failures are logged and swallowed;
// a failed populate must not fail the permission check that triggered it.
func (c *Cache) write(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "permission cache encode failed, skipping populate",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.store.Set(ctx, key, string(payload), ttl); err != nil {
		c.logger.WarnContext(ctx, "permission cache write failed, skipping populate",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
