package auth

import (
	"context"
	"time"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
	"github.com/neoplatform/neo-commons/pkg/keycloak"
)

// RefreshAdvice is the validator's recommendation on whether a token
// should be refreshed soon. It is advisory: the validator never refreshes
// a token on its own.
type RefreshAdvice struct {
	// ShouldRefresh is true when the token's remaining lifetime is
	// below the configured refresh threshold.
	ShouldRefresh bool

	// ExpiresIn is the token's remaining lifetime. Negative when the
	// token is already expired, zero when it carries no expiration.
	ExpiresIn time.Duration
}

// RefreshRecommendation reports whether the given claims are close enough
// to expiry that the caller should refresh the token. Tokens without an
// expiration never need refreshing.
func (v *TokenValidator) RefreshRecommendation(claims *TokenClaims) RefreshAdvice {
	if claims == nil || claims.ExpiresAt.IsZero() {
		return RefreshAdvice{}
	}
	remaining := claims.RemainingLifetime()
	return RefreshAdvice{
		ShouldRefresh: remaining < v.config.RefreshThreshold,
		ExpiresIn:     remaining,
	}
}

// EnsureFresh exchanges the refresh token for a new pair when the access
// token's remaining lifetime is below the refresh threshold. Returns nil
// with no error when the access token is still fresh enough; the caller
// keeps using the current pair.
func (v *TokenValidator) EnsureFresh(ctx context.Context, accessToken, refreshToken, realm string) (*keycloak.TokenPair, error) {
	if accessToken == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "auth: access token must not be empty")
	}
	if realm == "" {
		realm = v.config.DefaultRealm
	}

	exp := unverifiedExpiry(accessToken)
	if !exp.IsZero() && time.Until(exp) >= v.config.RefreshThreshold {
		return nil, nil
	}

	pair, err := v.provider.RefreshToken(ctx, refreshToken, realm)
	if err != nil {
		return nil, err
	}
	return pair, nil
}
