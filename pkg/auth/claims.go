package auth

import (
	"time"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// ---------------------------------------------------------------------------
// Strategy — how a token gets validated
// ---------------------------------------------------------------------------

// Strategy selects the validation path for a token. Local validation
// verifies the signature against the realm's public key without a network
// round trip; introspection asks the identity provider whether the token
// is live; dual combines both for defense in depth.
type Strategy string

const (
	// StrategyLocal verifies the token signature and claims locally
	// using the realm's cached public key. Fast, but blind to
	// revocations that happened after the token was issued.
	StrategyLocal Strategy = "local"

	// StrategyIntrospection asks the identity provider whether the
	// token is active. Authoritative, but every validation is a
	// network call (softened by a short-lived introspection cache).
	StrategyIntrospection Strategy = "introspection"

	// StrategyDual validates locally first and, on success, runs
	// introspection in the background for monitoring. A local failure
	// falls back to synchronous introspection. This is the default.
	StrategyDual Strategy = "dual"
)

// ParseStrategy converts a string to a Strategy, accepting the values
// "local", "introspection", and "dual". Returns a *[sserr.Error] with code
// [sserr.CodeValidation] for anything else.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLocal, StrategyIntrospection, StrategyDual:
		return Strategy(s), nil
	default:
		return "", sserr.Newf(sserr.CodeValidation, "auth: unknown validation strategy %q", s)
	}
}

// ---------------------------------------------------------------------------
// ValidateOptions
// ---------------------------------------------------------------------------

// ValidateOptions controls a single [TokenValidator.ValidateToken] call.
// The zero value uses the validator's configured defaults.
type ValidateOptions struct {
	// Strategy overrides the validator's configured strategy for this
	// call. Empty means use the configured default.
	Strategy Strategy

	// Realm names the realm the token belongs to. Empty means use the
	// validator's configured default realm.
	Realm string

	// Critical marks the operation as security-critical. Critical
	// validations always go through introspection so a revoked token
	// can never pass on a cached or local result.
	Critical bool
}

// ---------------------------------------------------------------------------
// TokenClaims
// ---------------------------------------------------------------------------

// TokenClaims is the outcome of a successful token validation. It carries
// the full claim set plus the metadata hosts need for authorization and
// refresh decisions.
//
// TokenClaims serializes to JSON for the shared validation cache, so every
// field the read path needs is tagged.
type TokenClaims struct {
	// Subject is the token's "sub" claim: the user or service ID.
	Subject string `json:"subject"`

	// Realm is the realm the token was validated against.
	Realm string `json:"realm"`

	// Strategy records which validation path produced this result.
	Strategy Strategy `json:"strategy"`

	// Claims is the full claim set from the token or the introspection
	// response.
	Claims map[string]any `json:"claims"`

	// ExpiresAt is the token's expiration time ("exp" claim). Zero when
	// the token carries no expiration.
	ExpiresAt time.Time `json:"expires_at"`

	// ValidatedAt is when this validation was performed.
	ValidatedAt time.Time `json:"validated_at"`
}

// StringClaim returns the named claim as a string, or "" when the claim
// is absent or not a string.
func (c *TokenClaims) StringClaim(name string) string {
	v, _ := c.Claims[name].(string)
	return v
}

// RemainingLifetime returns how long the token stays valid from now.
// Returns zero for tokens without an expiration and negative values for
// tokens already past it.
func (c *TokenClaims) RemainingLifetime() time.Duration {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(c.ExpiresAt)
}
