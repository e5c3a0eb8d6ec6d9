package permissions

import (
	"context"
	"log/slog"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// Source is the authoritative backend for permission data. The cache layer
// sits in front of a Source; the Source is always right and the cache is
// only an accelerator.
//
// tenantID selects the scope: an empty tenantID queries platform-scoped
// data, a non-empty tenantID queries that tenant's data. The two scopes
// are independent; implementations must not fall back from one to the
// other.
//
// Error contract: a user (or role) that does not exist is reported with
// [sserr.CodeNotFoundUser] so callers can distinguish "no such user" from
// an operational failure. Operational failures (network, timeout, query
// errors) use the usual database error codes and are considered retryable
// by composite sources.
type Source interface {
	// UserPermissions returns every permission record the user holds in
	// the given scope, direct grants and role-derived grants combined.
	UserPermissions(ctx context.Context, userID, tenantID string) ([]Record, error)

	// UserRoles returns the roles the user holds in the given scope.
	UserRoles(ctx context.Context, userID, tenantID string) ([]Role, error)

	// UsersWithRole returns the IDs of every user holding the role in
	// the given scope. Used to resolve invalidation fan-out when a
	// role's permissions change.
	UsersWithRole(ctx context.Context, roleID, tenantID string) ([]string, error)
}

// CompositeSource queries an ordered list of sources, falling back to the
// next source when one fails operationally.
//
// A definitive "not found" from any source short-circuits the chain: a
// user that does not exist must not spuriously gain permissions from a
// different source. Only operational failures (timeouts, connection
// errors) trigger fallback; when every source fails operationally, the
// composite reports the whole chain as unavailable.
type CompositeSource struct {
	sources []Source
	logger  *slog.Logger
}

// NewCompositeSource creates a composite over the given sources, queried
// in order. A nil logger falls back to [slog.Default].
func NewCompositeSource(logger *slog.Logger, sources ...Source) *CompositeSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompositeSource{sources: sources, logger: logger}
}

// UserPermissions queries each source in order and returns the first
// successful result. Not-found short-circuits; operational failures fall
// through to the next source.
func (c *CompositeSource) UserPermissions(ctx context.Context, userID, tenantID string) ([]Record, error) {
	var records []Record
	err := c.query(ctx, "UserPermissions", func(ctx context.Context, s Source) error {
		var err error
		records, err = s.UserPermissions(ctx, userID, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UserRoles queries each source in order and returns the first successful
// result. Not-found short-circuits; operational failures fall through.
func (c *CompositeSource) UserRoles(ctx context.Context, userID, tenantID string) ([]Role, error) {
	var roles []Role
	err := c.query(ctx, "UserRoles", func(ctx context.Context, s Source) error {
		var err error
		roles, err = s.UserRoles(ctx, userID, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// UsersWithRole queries each source in order and returns the first
// successful result. Not-found short-circuits; operational failures fall
// through.
func (c *CompositeSource) UsersWithRole(ctx context.Context, roleID, tenantID string) ([]string, error) {
	var users []string
	err := c.query(ctx, "UsersWithRole", func(ctx context.Context, s Source) error {
		var err error
		users, err = s.UsersWithRole(ctx, roleID, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// query runs fn against each source in order, applying the fallback and
// short-circuit rules shared by all three read operations.
func (c *CompositeSource) query(ctx context.Context, op string, fn func(context.Context, Source) error) error {
	if len(c.sources) == 0 {
		return sserr.New(sserr.CodeUnavailableDependency,
			"permissions: composite source has no backing sources")
	}

	var lastErr error
	for i, s := range c.sources {
		err := fn(ctx, s)
		if err == nil {
			return nil
		}
		if sserr.IsNotFound(err) {
			// Definitive answer: the entity does not exist. Trying
			// further sources could mask it.
			return err
		}
		c.logger.WarnContext(ctx, "permission source failed, trying fallback",
			slog.String("operation", op),
			slog.Int("source_index", i),
			slog.String("error", err.Error()),
		)
		lastErr = err
	}

	return sserr.Wrap(lastErr, sserr.CodeUnavailableDependency,
		"permissions: all permission sources failed")
}
