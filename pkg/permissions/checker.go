package permissions

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the OpenTelemetry instrumentation scope name for this
// package.
const tracerName = "github.com/neoplatform/neo-commons/pkg/permissions"

// Checker answers permission questions by combining the [Cache], the
// authoritative [Source], and the wildcard matcher.
//
// Reads follow the read-through pattern: a cache miss triggers a source
// query whose result is written back to the cache before returning, so
// the cache is never left cold after a miss. Normal denial is a false
// result, not an error; errors mean the question could not be answered
// (unknown user, or every source unavailable).
type Checker struct {
	cache  *Cache
	source Source
	logger *slog.Logger
	tracer trace.Tracer
}

// NewChecker creates a Checker over the given cache and source. A nil
// logger falls back to [slog.Default].
func NewChecker(cache *Cache, source Source, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cache:  cache,
		source: source,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Check reports whether the user holds the required permission in the
// given scope. Wildcard grants held by the user are honored; a wildcard
// in the required string only matches a literal wildcard grant.
//
// Error contract: [sserr.CodeNotFoundUser] when the user does not exist
// (callers should treat this as a denial, not a transient failure), and
// [sserr.CodeUnavailableDependency] when no source could answer
// (retryable).
func (c *Checker) Check(ctx context.Context, userID, permission, tenantID string) (bool, error) {
	return c.CheckBatch(ctx, userID, []string{permission}, tenantID, true)
}

// CheckBatch reports whether the user holds the required permissions in
// the given scope. With requireAll=true every permission must be covered;
// with requireAll=false one covered permission is enough. An empty
// required list is vacuously satisfied.
//
// The error contract matches [Checker.Check].
func (c *Checker) CheckBatch(ctx context.Context, userID string, required []string, tenantID string, requireAll bool) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "permissions.Check")
	span.SetAttributes(
		attribute.String("enduser.id", userID),
		attribute.Int("permissions.required_count", len(required)),
		attribute.Bool("permissions.require_all", requireAll),
	)
	if tenantID != "" {
		span.SetAttributes(attribute.String("permissions.tenant_id", tenantID))
	}
	defer span.End()

	records, err := c.userPermissions(ctx, userID, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	allowed := Satisfies(required, GrantStrings(records), requireAll)
	span.SetAttributes(attribute.Bool("permissions.allowed", allowed))
	span.SetStatus(codes.Ok, "")
	return allowed, nil
}

// Summary returns the user's resource to action-set summary for the
// given scope. The summary tier has its own cache entry and TTL; a
// summary miss recomputes from the permission records (themselves cached
// or fetched as needed) and repopulates the summary tier.
//
// The error contract matches [Checker.Check].
func (c *Checker) Summary(ctx context.Context, userID, tenantID string) (Summary, error) {
	if summary, ok := c.cache.GetSummary(ctx, userID, tenantID); ok {
		return summary, nil
	}

	records, err := c.userPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	summary := BuildSummary(records)
	c.cache.SetSummary(ctx, userID, tenantID, summary)
	return summary, nil
}

// Roles returns the user's roles for the given scope, read through the
// role cache tier.
//
// The error contract matches [Checker.Check].
func (c *Checker) Roles(ctx context.Context, userID, tenantID string) ([]Role, error) {
	if roles, ok := c.cache.GetRoles(ctx, userID, tenantID); ok {
		return roles, nil
	}

	roles, err := c.source.UserRoles(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	c.cache.SetRoles(ctx, userID, tenantID, roles)
	return roles, nil
}

// Cache exposes the underlying cache so hosts can wire invalidation
// hooks (user updates, role-permission changes) without a second handle.
func (c *Checker) Cache() *Cache {
	return c.cache
}

// userPermissions is the shared read-through path for permission records.
func (c *Checker) userPermissions(ctx context.Context, userID, tenantID string) ([]Record, error) {
	if records, ok := c.cache.GetPermissions(ctx, userID, tenantID); ok {
		return records, nil
	}

	records, err := c.source.UserPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	c.cache.SetPermissions(ctx, userID, tenantID, records)
	return records, nil
}
