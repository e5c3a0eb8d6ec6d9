// Package auth validates access tokens issued by a Keycloak-compatible
// identity provider and carries the resulting claims through request
// contexts.
//
// Validation supports three strategies: local signature verification
// against the realm's public key, provider-side introspection, and a dual
// mode that validates locally and introspects in the background for
// defense in depth. A shared revocation set (backed by the platform redis
// client) is consulted before any result is trusted, so a revoked token
// fails regardless of strategy or caching.
//
// Example:
//
//	provider, _ := keycloak.NewClient(&keycloak.Config{
//	    BaseURL:  "https://auth.example.com",
//	    ClientID: "neo-backend",
//	})
//	validator, err := auth.NewTokenValidator(auth.DefaultValidatorConfig(), provider, store, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	claims, err := validator.ValidateToken(ctx, token, auth.ValidateOptions{Realm: "acme"})
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neoplatform/neo-commons/pkg/clients/redis"
	sserr "github.com/neoplatform/neo-commons/pkg/errors"
	"github.com/neoplatform/neo-commons/pkg/keycloak"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/neoplatform/neo-commons/pkg/auth"

// Shared store key prefixes. The revocation set and the validation caches
// live in the same store so every process sees a revocation immediately.
const (
	revokedKeyPrefix = "neo:auth:revoked:"
	tokenKeyPrefix   = "neo:auth:token:"
	introKeyPrefix   = "neo:auth:intro:"
)

// Provider is the identity provider surface the validator consumes:
// introspection, realm keys, and refresh-token exchange. The keycloak
// client satisfies this interface.
type Provider interface {
	KeyProvider
	Introspect(ctx context.Context, token, realm string) (*keycloak.IntrospectionResult, error)
	RefreshToken(ctx context.Context, refreshToken, realm string) (*keycloak.TokenPair, error)
}

// Compile-time assertion that the keycloak client implements Provider.
var _ Provider = (*keycloak.Client)(nil)

// Store is the shared key-value surface used for the revocation set and
// the validation caches. The platform redis client satisfies this
// interface; tests use an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
}

// Compile-time assertion that the redis client implements Store.
var _ Store = (*redis.Client)(nil)

// TokenValidator validates access tokens against an identity provider with
// local, introspection, and dual strategies, a shared revocation set, and
// layered caching.
//
// TokenValidator is safe for concurrent use by multiple goroutines.
type TokenValidator struct {
	config   ValidatorConfig
	provider Provider
	store    Store
	keys     *keyCache
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewTokenValidator creates a validator from the given configuration,
// identity provider, and shared store. The configuration is validated
// before use. If logger is nil, [slog.Default] is used.
func NewTokenValidator(cfg ValidatorConfig, provider Provider, store Store, logger *slog.Logger) (*TokenValidator, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "auth: identity provider must not be nil")
	}
	if store == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "auth: shared store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenValidator{
		config:   cfg,
		provider: provider,
		store:    store,
		keys:     newKeyCache(cfg.KeyCacheTTL, provider),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// ---------------------------------------------------------------------------
// ValidateToken
// ---------------------------------------------------------------------------

// ValidateToken verifies the given access token and returns its claims.
//
// The method performs the following steps:
//  1. Rejects empty or oversized tokens
//  2. Checks the shared revocation set (fails closed on store errors)
//  3. For non-critical calls, checks the shared validation cache
//  4. Routes to the strategy from opts (Critical forces introspection)
//  5. Caches the validated claims, bounded by the token's lifetime
//
// In dual mode, a successful local validation additionally triggers a
// background introspection whose outcome is only logged; a failed local
// validation falls back to synchronous introspection.
//
// Rejections carry an AUTH_xxx code with a "reason" detail of expired,
// malformed, signature, revoked, or inactive.
func (v *TokenValidator) ValidateToken(ctx context.Context, token string, opts ValidateOptions) (*TokenClaims, error) {
	ctx, span := v.tracer.Start(ctx, "auth.ValidateToken")
	defer span.End()

	if token == "" {
		err := rejection(sserr.CodeAuthenticationInvalid, "malformed", "auth: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}
	if len(token) > maxTokenSize {
		err := rejection(sserr.CodeAuthenticationInvalid, "malformed", "auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	realm := opts.Realm
	if realm == "" {
		realm = v.config.DefaultRealm
	}
	if realm == "" {
		err := sserr.New(sserr.CodeValidationRequired, "auth: no realm specified and no default realm configured")
		finishSpan(span, err)
		return nil, err
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = v.config.Strategy
	}
	if opts.Critical {
		strategy = StrategyIntrospection
	}
	span.SetAttributes(
		attribute.String("auth.strategy", string(strategy)),
		attribute.String("auth.realm", realm),
		attribute.Bool("auth.critical", opts.Critical),
	)

	hash := tokenHash(token)

	// The revocation gate runs before any cached or computed result is
	// trusted. A store failure here fails closed: better to reject a
	// valid token than accept a revoked one.
	revoked, err := v.isRevokedHash(ctx, hash)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	if revoked {
		err := rejection(sserr.CodeAuthenticationRevoked, "revoked", "auth: token has been revoked")
		finishSpan(span, err)
		return nil, err
	}

	if !opts.Critical {
		if claims := v.cachedClaims(ctx, hash); claims != nil {
			span.SetAttributes(attribute.Bool("auth.cache_hit", true))
			return claims, nil
		}
	}
	span.SetAttributes(attribute.Bool("auth.cache_hit", false))

	var claims *TokenClaims
	var validationErr error

	switch strategy {
	case StrategyLocal:
		claims, validationErr = v.validateLocal(ctx, token, realm)
	case StrategyIntrospection:
		claims, validationErr = v.validateIntrospection(ctx, token, realm, hash)
	case StrategyDual:
		claims, validationErr = v.validateLocal(ctx, token, realm)
		if validationErr == nil {
			v.introspectInBackground(token, realm, hash)
		} else {
			claims, validationErr = v.validateIntrospection(ctx, token, realm, hash)
		}
	default:
		validationErr = sserr.Newf(sserr.CodeValidation, "auth: unknown validation strategy %q", strategy)
	}

	if validationErr != nil {
		finishSpan(span, validationErr)
		return nil, validationErr
	}

	claims.Strategy = strategy
	v.cacheClaims(ctx, hash, claims)

	span.SetAttributes(attribute.String("enduser.id", claims.Subject))
	return claims, nil
}

// ---------------------------------------------------------------------------
// Local validation
// ---------------------------------------------------------------------------

// validateLocal verifies the token signature and registered claims against
// the realm's public key.
//
// Two single-shot retries are built in: a signature failure refetches the
// realm key once (key rotation), and an audience failure retries once
// without audience verification (providers that omit the claim on service
// tokens). An expired token is never retried.
func (v *TokenValidator) validateLocal(ctx context.Context, token, realm string) (*TokenClaims, error) {
	key, err := v.keys.get(ctx, realm)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "auth: realm public key unavailable")
	}

	parsed, err := v.parseLocal(token, key, realm, true)

	if err != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		v.keys.invalidate(realm)
		if key, keyErr := v.keys.get(ctx, realm); keyErr == nil {
			parsed, err = v.parseLocal(token, key, realm, true)
		}
	}

	if err != nil && v.config.Audience != "" &&
		errors.Is(err, jwt.ErrTokenInvalidAudience) &&
		!errors.Is(err, jwt.ErrTokenExpired) {
		parsed, err = v.parseLocal(token, key, realm, false)
	}

	if err != nil {
		return nil, classifyJWTError(err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, rejection(sserr.CodeAuthenticationInvalid, "malformed", "auth: unable to extract token claims")
	}

	return claimsFromMap(map[string]any(mc), realm, StrategyLocal), nil
}

// parseLocal runs jwt.Parse with the validator's parser options. Only
// RS256 is accepted; alg confusion (including alg:none) is rejected by the
// method allowlist.
func (v *TokenValidator) parseLocal(token string, key *rsa.PublicKey, realm string, withAudience bool) (*jwt.Token, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(v.config.ClockSkew),
	}
	if v.config.IssuerBase != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.expectedIssuer(realm)))
	}
	if withAudience && v.config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.config.Audience))
	}

	return jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, parserOpts...)
}

// expectedIssuer derives the expected "iss" claim for a realm.
func (v *TokenValidator) expectedIssuer(realm string) string {
	base := v.config.IssuerBase
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/realms/" + realm
}

// ---------------------------------------------------------------------------
// Introspection validation
// ---------------------------------------------------------------------------

// validateIntrospection asks the provider whether the token is active,
// reusing a recent cached answer when one exists. Only active=true is
// trusted; a definitive inactive answer is an authentication failure, and
// a provider outage surfaces as unavailable so callers never mistake it
// for a rejected token.
func (v *TokenValidator) validateIntrospection(ctx context.Context, token, realm, hash string) (*TokenClaims, error) {
	cacheKey := introKeyPrefix + realm + ":" + hash

	result := v.cachedIntrospection(ctx, cacheKey)
	if result == nil {
		ictx, cancel := context.WithTimeout(ctx, v.config.IntrospectionTimeout)
		defer cancel()

		fresh, err := v.provider.Introspect(ictx, token, realm)
		if err != nil {
			if _, ok := sserr.AsError(err); ok {
				return nil, err
			}
			return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "auth: token introspection failed")
		}
		result = fresh

		if payload, err := json.Marshal(result); err == nil {
			if err := v.store.Set(ctx, cacheKey, payload, v.config.IntrospectionCacheTTL); err != nil {
				v.logger.WarnContext(ctx, "failed to cache introspection result", "error", err)
			}
		}
	}

	if !result.Active {
		return nil, rejection(sserr.CodeAuthentication, "inactive", "auth: token is not active")
	}

	return claimsFromMap(result.Claims, realm, StrategyIntrospection), nil
}

// cachedIntrospection returns a recent introspection answer from the
// shared store, or nil on miss. Store failures are logged misses.
func (v *TokenValidator) cachedIntrospection(ctx context.Context, cacheKey string) *keycloak.IntrospectionResult {
	raw, err := v.store.Get(ctx, cacheKey)
	if err != nil {
		if !sserr.IsNotFound(err) {
			v.logger.WarnContext(ctx, "introspection cache read failed", "error", err)
		}
		return nil
	}
	var cached keycloak.IntrospectionResult
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}
	return &cached
}

// introspectInBackground runs introspection on a detached goroutine after
// a successful local validation in dual mode. The outcome never reaches
// the caller; a failure or an inactive answer is logged for monitoring.
func (v *TokenValidator) introspectInBackground(token, realm, hash string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.config.IntrospectionTimeout)
		defer cancel()

		if _, err := v.validateIntrospection(ctx, token, realm, hash); err != nil {
			v.logger.WarnContext(ctx, "background introspection disagreed with local validation",
				"realm", realm,
				"error", err,
			)
		}
	}()
}

// ---------------------------------------------------------------------------
// Revocation
// ---------------------------------------------------------------------------

// revocationFallbackTTL bounds revocation entries for tokens whose expiry
// cannot be read, so malformed or opaque input cannot accumulate permanent
// entries in the revocation set.
const revocationFallbackTTL = 24 * time.Hour

// Revoke adds the token to the shared revocation set. The entry lives for
// the token's remaining lifetime, after which the token is expired anyway
// and the entry is garbage. Tokens without a readable expiry (opaque or
// malformed) are held for [revocationFallbackTTL] instead. Any cached
// validation of the token is dropped.
//
// Revoking an already-expired token is a no-op.
func (v *TokenValidator) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return sserr.New(sserr.CodeValidationRequired, "auth: token must not be empty")
	}
	hash := tokenHash(token)

	ttl := revocationFallbackTTL
	if exp := unverifiedExpiry(token); !exp.IsZero() {
		remaining := time.Until(exp)
		if remaining <= 0 {
			return nil
		}
		ttl = remaining
	}

	if err := v.store.Set(ctx, revokedKeyPrefix+hash, "1", ttl); err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "auth: failed to record token revocation")
	}
	if _, err := v.store.Del(ctx, tokenKeyPrefix+hash); err != nil {
		v.logger.WarnContext(ctx, "failed to drop cached validation for revoked token", "error", err)
	}
	return nil
}

// IsRevoked reports whether the token is in the shared revocation set.
func (v *TokenValidator) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, sserr.New(sserr.CodeValidationRequired, "auth: token must not be empty")
	}
	return v.isRevokedHash(ctx, tokenHash(token))
}

func (v *TokenValidator) isRevokedHash(ctx context.Context, hash string) (bool, error) {
	n, err := v.store.Exists(ctx, revokedKeyPrefix+hash)
	if err != nil {
		return false, sserr.Wrap(err, sserr.CodeUnavailableDependency, "auth: revocation check failed")
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Validation cache
// ---------------------------------------------------------------------------

// cachedClaims returns a still-valid cached validation result, or nil.
// Store failures and corrupt entries are logged misses.
func (v *TokenValidator) cachedClaims(ctx context.Context, hash string) *TokenClaims {
	raw, err := v.store.Get(ctx, tokenKeyPrefix+hash)
	if err != nil {
		if !sserr.IsNotFound(err) {
			v.logger.WarnContext(ctx, "validation cache read failed", "error", err)
		}
		return nil
	}
	var claims TokenClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil
	}
	if !claims.ExpiresAt.IsZero() && time.Now().After(claims.ExpiresAt) {
		return nil
	}
	return &claims
}

// cacheClaims stores a validation result with a TTL bounded by the token's
// remaining lifetime. Write failures are logged and swallowed.
func (v *TokenValidator) cacheClaims(ctx context.Context, hash string, claims *TokenClaims) {
	ttl := v.config.TokenCacheTTL
	if !claims.ExpiresAt.IsZero() {
		remaining := claims.RemainingLifetime()
		if remaining <= 0 {
			return
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return
	}
	if err := v.store.Set(ctx, tokenKeyPrefix+hash, payload, ttl); err != nil {
		v.logger.WarnContext(ctx, "failed to cache validation result", "error", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// tokenHash computes the SHA-256 hash of a token string and returns it as
// a hex string. Store keys carry the hash so raw tokens never land in the
// shared store.
func tokenHash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// unverifiedExpiry extracts the "exp" claim without verifying the token.
// Returns the zero time when the token is unparseable or has no expiry.
func unverifiedExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil || parsed == nil {
		return time.Time{}
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// claimsFromMap builds TokenClaims from a raw claim map.
func claimsFromMap(m map[string]any, realm string, strategy Strategy) *TokenClaims {
	sub, _ := m["sub"].(string)

	var expiresAt time.Time
	switch exp := m["exp"].(type) {
	case float64:
		expiresAt = time.Unix(int64(exp), 0)
	case int64:
		expiresAt = time.Unix(exp, 0)
	case json.Number:
		if n, err := exp.Int64(); err == nil {
			expiresAt = time.Unix(n, 0)
		}
	}

	return &TokenClaims{
		Subject:     sub,
		Realm:       realm,
		Strategy:    strategy,
		Claims:      m,
		ExpiresAt:   expiresAt,
		ValidatedAt: time.Now(),
	}
}

// rejection builds an authentication error with a structured reason detail.
func rejection(code sserr.Code, reason, message string) *sserr.Error {
	return sserr.New(code, message).WithDetail("reason", reason)
}

// classifyJWTError converts a JWT library error to a *[sserr.Error] with
// the correct AUTH code and reason detail. Errors that are already
// *[sserr.Error] pass through unchanged.
func classifyJWTError(err error) *sserr.Error {
	if err == nil {
		return nil
	}

	var ssError *sserr.Error
	if errors.As(err, &ssError) {
		return ssError
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token has expired").
			WithDetail("reason", "expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is malformed").
			WithDetail("reason", "malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token signature is invalid").
			WithDetail("reason", "signature")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is not yet valid").
			WithDetail("reason", "malformed")
	default:
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token validation failed").
			WithDetail("reason", "malformed")
	}
}

// finishSpan records an error on the span and sets the span status.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
