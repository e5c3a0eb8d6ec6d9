// Package ratelimit implements a fixed-window rate limiter over a shared
// key-value store, so limits hold across every process that shares the
// store.
//
// The window is anchored at the first request: the first increment creates
// the counter with an expiry of one window, and the counter vanishes when
// the window elapses. Counting is a single INCR, so concurrent requests
// across processes never race the limit.
//
// Example:
//
//	limiter := ratelimit.NewLimiter(store, logger)
//	limit := ratelimit.Limit{Requests: 100, Window: time.Minute}
//	state, err := limiter.Increment(ctx, "user:alice", limit)
//	if errors.IsRateLimited(err) {
//	    // reject with the retry metadata carried by err
//	}
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/neoplatform/neo-commons/pkg/clients/redis"
	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// keyPrefix namespaces rate-limit counters in the shared store.
const keyPrefix = "neo:rate:"

// Store is the shared store surface the limiter needs. The platform redis
// client satisfies this interface; tests use an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

// Compile-time assertion that the redis client implements Store.
var _ Store = (*redis.Client)(nil)

// Limit describes a fixed-window rate limit. Burst, when positive,
// replaces Requests as the effective limit; it exists so callers can grant
// a higher ceiling to selected identifiers without changing the base
// limit.
type Limit struct {
	// Requests is the number of requests allowed per window.
	Requests int64 `json:"requests"`

	// Window is the length of the fixed window.
	Window time.Duration `json:"window"`

	// Burst, when positive, overrides Requests as the effective limit.
	Burst int64 `json:"burst,omitempty"`
}

// Effective returns the limit actually enforced: Burst when positive,
// Requests otherwise.
func (l Limit) Effective() int64 {
	if l.Burst > 0 {
		return l.Burst
	}
	return l.Requests
}

// Validate checks the limit for logical correctness.
func (l Limit) Validate() *sserr.Error {
	if l.Requests <= 0 {
		return sserr.New(sserr.CodeValidationRange, "ratelimit: requests per window must be positive")
	}
	if l.Window <= 0 {
		return sserr.New(sserr.CodeValidationRange, "ratelimit: window must be positive")
	}
	if l.Burst < 0 {
		return sserr.New(sserr.CodeValidationRange, "ratelimit: burst must be non-negative")
	}
	return nil
}

// State is a snapshot of a rate-limit counter.
type State struct {
	// Limit is the effective limit for the window.
	Limit int64

	// Requests is the number of requests counted in the current window,
	// including the one being processed on an [Limiter.Increment] call.
	Requests int64

	// Remaining is how many requests are left in the current window.
	Remaining int64

	// ResetAt is when the current window ends and the counter resets.
	// Zero when no window is active.
	ResetAt time.Time
}

// Limiter is a fixed-window rate limiter over a shared store. It is safe
// for concurrent use by multiple goroutines.
type Limiter struct {
	store  Store
	logger *slog.Logger
}

// NewLimiter creates a limiter over the given store. If logger is nil,
// [slog.Default] is used.
func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, logger: logger}
}

// Check returns the current state for the identifier without consuming a
// request. A missing counter means a fresh window: zero requests made.
func (l *Limiter) Check(ctx context.Context, id string, limit Limit) (State, error) {
	if err := limit.Validate(); err != nil {
		return State{}, err
	}

	effective := limit.Effective()
	key := keyPrefix + id

	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if sserr.IsNotFound(err) {
			return State{Limit: effective, Remaining: effective}, nil
		}
		return State{}, sserr.Wrap(err, sserr.CodeUnavailableDependency, "ratelimit: counter read failed")
	}

	count, parseErr := parseCount(raw)
	if parseErr != nil {
		return State{}, parseErr
	}

	return l.stateFor(ctx, key, count, limit), nil
}

// Increment consumes one request for the identifier and returns the
// resulting state. When the effective limit is exceeded, the returned
// error has code RATE_001 and carries retry_after_seconds and reset_at
// details; the request that exceeded the limit is still counted, so a
// client hammering past the limit keeps extending its denial only in
// request count, not in window length.
func (l *Limiter) Increment(ctx context.Context, id string, limit Limit) (State, error) {
	if err := limit.Validate(); err != nil {
		return State{}, err
	}

	key := keyPrefix + id

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return State{}, sserr.Wrap(err, sserr.CodeUnavailableDependency, "ratelimit: counter increment failed")
	}

	// First hit of the window anchors it.
	if count == 1 {
		if _, err := l.store.Expire(ctx, key, limit.Window); err != nil {
			l.logger.WarnContext(ctx, "failed to set rate limit window expiry",
				"id", id,
				"error", err,
			)
		}
	}

	state := l.stateFor(ctx, key, count, limit)

	if count > state.Limit {
		retryAfter := int64(time.Until(state.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		return state, sserr.RateLimited("ratelimit: too many requests", retryAfter, state.ResetAt)
	}
	return state, nil
}

// Reset clears the identifier's counter, starting a fresh window on the
// next request. The limit is validated for symmetry with [Limiter.Check]
// and [Limiter.Increment] but is otherwise unused: the counter key
// derives from the identifier alone.
func (l *Limiter) Reset(ctx context.Context, id string, limit Limit) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	if _, err := l.store.Del(ctx, keyPrefix+id); err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "ratelimit: counter reset failed")
	}
	return nil
}

// stateFor assembles a State from the current count and the key's
// remaining TTL. A TTL read failure degrades to estimating the reset from
// a full window.
func (l *Limiter) stateFor(ctx context.Context, key string, count int64, limit Limit) State {
	effective := limit.Effective()

	remaining := effective - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Now().Add(limit.Window)
	if ttl, err := l.store.TTL(ctx, key); err != nil {
		l.logger.WarnContext(ctx, "failed to read rate limit window TTL", "error", err)
	} else if ttl > 0 {
		resetAt = time.Now().Add(ttl)
	}

	return State{
		Limit:     effective,
		Requests:  count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// parseCount converts a stored counter value to an int64.
func parseCount(raw string) (int64, *sserr.Error) {
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, sserr.Wrapf(err, sserr.CodeInternal, "ratelimit: counter value %q is not a number", raw)
	}
	return count, nil
}
