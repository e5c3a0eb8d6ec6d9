package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// claimsKey stores the validated *TokenClaims in the context.
	claimsKey contextKey = iota
)

// ContextWithClaims returns a new context with the validated token claims
// attached. The claims can later be retrieved with [ClaimsFromContext].
//
// This is typically called by HTTP middleware after successfully
// validating an access token.
func ContextWithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the validated token claims from the context.
// Returns the claims and true if present, or nil and false if no claims
// have been set. This function never returns non-nil claims with false.
//
// Example:
//
//	claims, ok := auth.ClaimsFromContext(ctx)
//	if !ok {
//	    return errors.New(errors.CodeAuthentication, "no claims in context")
//	}
//	log.Info("request from", "subject", claims.Subject, "realm", claims.Realm)
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*TokenClaims)
	return claims, ok
}

// MustClaimsFromContext retrieves the validated token claims from the
// context, panicking if none are present. This should only be used in code
// paths that run strictly behind the authentication middleware.
func MustClaimsFromContext(ctx context.Context) *TokenClaims {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		panic("auth: no claims in context; ensure authentication middleware is configured")
	}
	return claims
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context.
// Returns the trace ID as a hex string and true if a valid trace is active,
// or an empty string and false if no trace is present.
//
// This allows correlating authentication events with distributed traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// SpanIDFromContext extracts the OpenTelemetry span ID from the context.
// Returns the span ID as a hex string and true if a valid span is active,
// or an empty string and false if no span is present.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.SpanID().String(), true
}
