package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
	"github.com/neoplatform/neo-commons/pkg/permissions"
	"github.com/neoplatform/neo-commons/pkg/ratelimit"
)

// HTTP header names used by the middleware.
const (
	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"

	// HeaderTenantID carries the tenant scope for permission checks.
	// Absent means platform scope.
	HeaderTenantID = "X-Tenant-ID"
)

// bearerPrefix is the expected Authorization scheme prefix.
const bearerPrefix = "bearer "

// ExtractBearerToken extracts the token from an Authorization header
// value. Returns "" when the header is empty or does not use the Bearer
// scheme. The scheme comparison is case-insensitive per RFC 7235.
func ExtractBearerToken(header string) string {
	if len(header) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// MiddlewareOptions configures [HTTPMiddleware]. Only the validator is
// mandatory; rate limiting and permission enforcement activate when their
// collaborators are provided.
type MiddlewareOptions struct {
	// Realm names the realm tokens are validated against. Empty uses
	// the validator's default realm.
	Realm string

	// Critical marks every request through this middleware as
	// security-critical, forcing introspection-backed validation.
	Critical bool

	// RequiredPermission, when set together with Checker, is the
	// "resource:action" permission every request must hold. The tenant
	// scope is read from the X-Tenant-ID header.
	RequiredPermission string

	// Checker performs the permission check for RequiredPermission.
	Checker *permissions.Checker

	// Limiter, when set, applies per-subject rate limiting after
	// successful authentication.
	Limiter *ratelimit.Limiter

	// Limit is the rate limit applied by Limiter.
	Limit ratelimit.Limit

	// Logger receives middleware diagnostics. If nil, [slog.Default]
	// is used.
	Logger *slog.Logger
}

// HTTPMiddleware returns an HTTP middleware that authenticates every
// request with the given validator and, optionally, rate limits and
// authorizes it.
//
// The middleware performs the following steps:
//  1. Extracts the bearer token from the Authorization header
//  2. Validates the token (401 on rejection, 503 on outage)
//  3. Applies per-subject rate limiting when a limiter is configured
//     (429 with a Retry-After header when exceeded)
//  4. Checks the required permission when a checker is configured
//     (403 on denial)
//  5. Stores the validated claims in the request context for handlers
//     ([ClaimsFromContext])
//
// Errors are written as JSON bodies with the platform error code, mapped
// to HTTP status by error category.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/users", handleUsers)
//	handler := auth.HTTPMiddleware(validator, auth.MiddlewareOptions{
//	    Realm:              "acme",
//	    RequiredPermission: "users:read",
//	    Checker:            checker,
//	})(mux)
func HTTPMiddleware(validator *TokenValidator, opts MiddlewareOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				writeError(w, sserr.New(sserr.CodeAuthentication, "missing or invalid authorization header"))
				return
			}

			claims, err := validator.ValidateToken(ctx, token, ValidateOptions{
				Realm:    opts.Realm,
				Critical: opts.Critical,
			})
			if err != nil {
				logger.DebugContext(ctx, "token validation rejected request",
					"path", r.URL.Path,
					"error", err,
				)
				writeError(w, err)
				return
			}

			if opts.Limiter != nil {
				if _, err := opts.Limiter.Increment(ctx, "user:"+claims.Subject, opts.Limit); err != nil {
					writeError(w, err)
					return
				}
			}

			if opts.RequiredPermission != "" && opts.Checker != nil {
				tenantID := r.Header.Get(HeaderTenantID)
				allowed, err := opts.Checker.Check(ctx, claims.Subject, opts.RequiredPermission, tenantID)
				if err != nil {
					writeError(w, err)
					return
				}
				if !allowed {
					writeError(w, sserr.Newf(sserr.CodeAuthorizationDenied,
						"permission %q is required", opts.RequiredPermission))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
		})
	}
}

// errorResponse is the JSON body written for rejected requests.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a platform error to its HTTP status and writes a JSON
// body. Rate-limit errors additionally carry a Retry-After header from the
// error's retry metadata.
func writeError(w http.ResponseWriter, err error) {
	e, ok := sserr.AsError(err)
	if !ok {
		e = sserr.Wrap(err, sserr.CodeInternal, "internal error")
	}

	if retryAfter, ok := e.Details["retry_after_seconds"].(int64); ok {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    string(e.Code),
		Message: e.Message,
	})
}
