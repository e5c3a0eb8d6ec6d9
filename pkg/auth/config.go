package auth

import (
	"time"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// maxTokenSize is the maximum accepted size for a JWT token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Default cache and threshold durations for token validation.
const (
	// DefaultTokenCacheTTL bounds how long a validated token result is
	// reused from the shared store before re-validation.
	DefaultTokenCacheTTL = 5 * time.Minute

	// DefaultIntrospectionCacheTTL bounds how long an introspection
	// answer is reused. Short on purpose: this is the window in which
	// a freshly revoked token can still pass an introspection check.
	DefaultIntrospectionCacheTTL = 60 * time.Second

	// DefaultKeyCacheTTL bounds how long a realm public key is held in
	// the in-process key cache before being refetched.
	DefaultKeyCacheTTL = time.Hour

	// DefaultRefreshThreshold is the remaining-lifetime floor below
	// which a token refresh is recommended.
	DefaultRefreshThreshold = 300 * time.Second

	// DefaultIntrospectionTimeout bounds a single introspection call,
	// including the detached background call in dual mode.
	DefaultIntrospectionTimeout = 5 * time.Second

	// DefaultClockSkew is the tolerated clock difference between this
	// process and the token issuer.
	DefaultClockSkew = 30 * time.Second
)

// ValidatorConfig holds the configuration for [TokenValidator]. It selects
// the default validation strategy and realm, the expected issuer and
// audience claims, and the cache and timeout durations.
type ValidatorConfig struct {
	// Strategy is the default validation strategy, overridable per call
	// via [ValidateOptions.Strategy]. Defaults to [StrategyDual].
	Strategy Strategy `json:"strategy" env:"AUTH_STRATEGY" envDefault:"dual"`

	// DefaultRealm is the realm used when a validation call does not
	// name one.
	DefaultRealm string `json:"default_realm" env:"AUTH_DEFAULT_REALM"`

	// IssuerBase is the identity provider server root used to derive
	// the expected "iss" claim as {IssuerBase}/realms/{realm}. When
	// empty, the issuer claim is not verified.
	IssuerBase string `json:"issuer_base,omitempty" env:"AUTH_ISSUER_BASE"`

	// Audience is the expected "aud" claim. When empty, the audience
	// claim is not verified. A token failing only the audience check is
	// retried once without audience verification, for compatibility
	// with providers that omit the claim on service tokens.
	Audience string `json:"audience,omitempty" env:"AUTH_AUDIENCE"`

	// ClockSkew is the tolerated clock difference between this process
	// and the token issuer. Must be non-negative. Defaults to
	// [DefaultClockSkew].
	ClockSkew time.Duration `json:"clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// TokenCacheTTL is the maximum time a validated token result is
	// reused before re-validation. The effective TTL for a token is the
	// minimum of this value and the token's remaining lifetime. Must be
	// non-negative. Defaults to [DefaultTokenCacheTTL].
	TokenCacheTTL time.Duration `json:"token_cache_ttl" env:"AUTH_TOKEN_CACHE_TTL" envDefault:"5m"`

	// IntrospectionCacheTTL is the time an introspection answer is
	// reused. Must be non-negative. Defaults to
	// [DefaultIntrospectionCacheTTL].
	IntrospectionCacheTTL time.Duration `json:"introspection_cache_ttl" env:"AUTH_INTROSPECTION_CACHE_TTL" envDefault:"60s"`

	// KeyCacheTTL is the time a realm public key is held before being
	// refetched from the provider. Must be non-negative. Defaults to
	// [DefaultKeyCacheTTL].
	KeyCacheTTL time.Duration `json:"key_cache_ttl" env:"AUTH_KEY_CACHE_TTL" envDefault:"1h"`

	// RefreshThreshold is the remaining-lifetime floor below which
	// [TokenValidator.RefreshRecommendation] advises a refresh. Must be
	// non-negative. Defaults to [DefaultRefreshThreshold].
	RefreshThreshold time.Duration `json:"refresh_threshold" env:"AUTH_REFRESH_THRESHOLD" envDefault:"300s"`

	// IntrospectionTimeout bounds each introspection call, including
	// the detached background call in dual mode. Must be positive.
	// Defaults to [DefaultIntrospectionTimeout].
	IntrospectionTimeout time.Duration `json:"introspection_timeout" env:"AUTH_INTROSPECTION_TIMEOUT" envDefault:"5s"`
}

// DefaultValidatorConfig returns a ValidatorConfig with the default
// strategy and durations. DefaultRealm must still be set by the caller
// (or realms passed per validation call).
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Strategy:              StrategyDual,
		ClockSkew:             DefaultClockSkew,
		TokenCacheTTL:         DefaultTokenCacheTTL,
		IntrospectionCacheTTL: DefaultIntrospectionCacheTTL,
		KeyCacheTTL:           DefaultKeyCacheTTL,
		RefreshThreshold:      DefaultRefreshThreshold,
		IntrospectionTimeout:  DefaultIntrospectionTimeout,
	}
}

// Validate checks the configuration for logical correctness and returns a
// *[sserr.Error] with code [sserr.CodeValidation] if any field is invalid.
func (c *ValidatorConfig) Validate() *sserr.Error {
	if c.Strategy != "" {
		if _, err := ParseStrategy(string(c.Strategy)); err != nil {
			return sserr.Newf(sserr.CodeValidation, "auth: invalid strategy %q", c.Strategy)
		}
	}
	if c.ClockSkew < 0 {
		return sserr.New(sserr.CodeValidation, "auth: clock skew must be non-negative")
	}
	if c.TokenCacheTTL < 0 {
		return sserr.New(sserr.CodeValidation, "auth: token cache TTL must be non-negative")
	}
	if c.IntrospectionCacheTTL < 0 {
		return sserr.New(sserr.CodeValidation, "auth: introspection cache TTL must be non-negative")
	}
	if c.KeyCacheTTL < 0 {
		return sserr.New(sserr.CodeValidation, "auth: key cache TTL must be non-negative")
	}
	if c.RefreshThreshold < 0 {
		return sserr.New(sserr.CodeValidation, "auth: refresh threshold must be non-negative")
	}
	if c.IntrospectionTimeout < 0 {
		return sserr.New(sserr.CodeValidation, "auth: introspection timeout must be non-negative")
	}
	return nil
}

// applyDefaults fills zero-valued fields with their defaults.
func (c *ValidatorConfig) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyDual
	}
	if c.ClockSkew == 0 {
		c.ClockSkew = DefaultClockSkew
	}
	if c.TokenCacheTTL == 0 {
		c.TokenCacheTTL = DefaultTokenCacheTTL
	}
	if c.IntrospectionCacheTTL == 0 {
		c.IntrospectionCacheTTL = DefaultIntrospectionCacheTTL
	}
	if c.KeyCacheTTL == 0 {
		c.KeyCacheTTL = DefaultKeyCacheTTL
	}
	if c.RefreshThreshold == 0 {
		c.RefreshThreshold = DefaultRefreshThreshold
	}
	if c.IntrospectionTimeout == 0 {
		c.IntrospectionTimeout = DefaultIntrospectionTimeout
	}
}
