// Package keycloak provides a thin HTTP client for a Keycloak-compatible
// identity provider, covering the three operations the auth layer needs:
// token introspection, realm public key retrieval, and refresh-token
// exchange.
//
// The client is deliberately small: it speaks the OpenID Connect endpoints
// under /realms/{realm}/protocol/openid-connect and returns platform errors
// ([sserr.Error]) classified so callers can distinguish provider outages
// (retryable) from rejected credentials (not retryable).
//
// Example:
//
//	client, err := keycloak.NewClient(&keycloak.Config{
//	    BaseURL:      "https://auth.example.com",
//	    ClientID:     "neo-backend",
//	    ClientSecret: keycloak.Secret(os.Getenv("KEYCLOAK_CLIENT_SECRET")),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := client.Introspect(ctx, accessToken, "acme")
//	if err == nil && result.Active {
//	    // token is live according to the provider
//	}
package keycloak

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for provider
// call spans.
const tracerName = "github.com/neoplatform/neo-commons/pkg/keycloak"

// maxResponseSize limits provider response bodies to 1 MB to prevent
// resource exhaustion from a misbehaving endpoint.
const maxResponseSize = 1 << 20

// HTTPClient abstracts the HTTP client used for provider calls. The
// standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IntrospectionResult is the provider's answer to a token introspection
// call (RFC 7662). Active reports whether the provider considers the token
// live; Claims carries the full introspection payload (sub, exp, scope,
// realm_access, and any provider-specific fields).
type IntrospectionResult struct {
	Active bool
	Claims map[string]any
}

// TokenPair is the result of a refresh-token exchange: a fresh access
// token, the (possibly rotated) refresh token, and the access token's
// lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Client is an HTTP client for a Keycloak-compatible identity provider.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	config     *Config
	httpClient HTTPClient
	tracer     trace.Tracer
}

// NewClient creates a provider client from the given configuration. The
// configuration is validated before use.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// ---------------------------------------------------------------------------
// Introspect
// ---------------------------------------------------------------------------

// Introspect asks the provider whether the given token is active in the
// given realm. Only a 200 response with a parseable body is trusted; every
// transport or server failure is returned as an error so callers never
// mistake an outage for a rejected token.
//
// Note that Active=false with a nil error is a definitive provider answer:
// the token is not live (revoked, expired, or unknown).
func (c *Client) Introspect(ctx context.Context, token, realm string) (*IntrospectionResult, error) {
	ctx, span := c.startSpan(ctx, "keycloak.Introspect", realm)
	defer span.End()

	if token == "" {
		err := sserr.New(sserr.CodeValidationRequired, "keycloak: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}

	form := url.Values{
		"token":         {token},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret.Value()},
	}

	endpoint := c.realmURL(realm) + "/protocol/openid-connect/token/introspect"
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	claims := make(map[string]any)
	if err := json.Unmarshal(body, &claims); err != nil {
		wrapped := sserr.Wrap(err, sserr.CodeUnavailableDependency, "keycloak: introspection response is not valid JSON")
		finishSpan(span, wrapped)
		return nil, wrapped
	}

	active, _ := claims["active"].(bool)
	span.SetAttributes(attribute.Bool("keycloak.token_active", active))
	return &IntrospectionResult{Active: active, Claims: claims}, nil
}

// ---------------------------------------------------------------------------
// RealmPublicKey
// ---------------------------------------------------------------------------

// realmRepresentation is the subset of the realm endpoint response the
// client needs. PublicKey is the realm's RSA signing key as raw base64 DER
// without PEM armor.
type realmRepresentation struct {
	Realm     string `json:"realm"`
	PublicKey string `json:"public_key"`
}

// RealmPublicKey fetches the realm's RSA public signing key and returns it
// as a PEM-encoded PKIX block, ready for [jwt.ParseRSAPublicKeyFromPEM].
func (c *Client) RealmPublicKey(ctx context.Context, realm string) (string, error) {
	ctx, span := c.startSpan(ctx, "keycloak.RealmPublicKey", realm)
	defer span.End()

	body, err := c.get(ctx, c.realmURL(realm))
	if err != nil {
		finishSpan(span, err)
		return "", err
	}

	var rep realmRepresentation
	if err := json.Unmarshal(body, &rep); err != nil {
		wrapped := sserr.Wrap(err, sserr.CodeUnavailableDependency, "keycloak: realm response is not valid JSON")
		finishSpan(span, wrapped)
		return "", wrapped
	}
	if rep.PublicKey == "" {
		err := sserr.Newf(sserr.CodeUnavailableDependency, "keycloak: realm %q response is missing public_key", realm)
		finishSpan(span, err)
		return "", err
	}

	der, err := base64.StdEncoding.DecodeString(rep.PublicKey)
	if err != nil {
		wrapped := sserr.Wrap(err, sserr.CodeUnavailableDependency, "keycloak: realm public key is not valid base64")
		finishSpan(span, wrapped)
		return "", wrapped
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(pemBytes), nil
}

// ---------------------------------------------------------------------------
// RefreshToken
// ---------------------------------------------------------------------------

// RefreshToken exchanges a refresh token for a new token pair. A 400 or
// 401 from the provider means the refresh token itself was rejected
// (expired, revoked, or wrong client) and maps to an authentication error;
// anything else is treated as a provider failure.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, realm string) (*TokenPair, error) {
	ctx, span := c.startSpan(ctx, "keycloak.RefreshToken", realm)
	defer span.End()

	if refreshToken == "" {
		err := sserr.New(sserr.CodeValidationRequired, "keycloak: refresh token must not be empty")
		finishSpan(span, err)
		return nil, err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret.Value()},
	}

	endpoint := c.realmURL(realm) + "/protocol/openid-connect/token"
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		// The token endpoint signals a rejected refresh token with a
		// client error, not a transport failure.
		if sserr.GetCode(err) == codeForStatus(http.StatusBadRequest) ||
			sserr.GetCode(err) == codeForStatus(http.StatusUnauthorized) {
			rejected := sserr.New(sserr.CodeAuthenticationInvalid, "keycloak: refresh token was rejected by the provider")
			finishSpan(span, rejected)
			return nil, rejected
		}
		finishSpan(span, err)
		return nil, err
	}

	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		wrapped := sserr.Wrap(err, sserr.CodeUnavailableDependency, "keycloak: token response is not valid JSON")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	if pair.AccessToken == "" {
		err := sserr.New(sserr.CodeUnavailableDependency, "keycloak: token response is missing access_token")
		finishSpan(span, err)
		return nil, err
	}
	return &pair, nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

// realmURL builds the base URL for realm-scoped endpoints.
func (c *Client) realmURL(realm string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/realms/" + url.PathEscape(realm)
}

// postForm issues a form-encoded POST bounded by the configured timeout
// and returns the response body on 200, or a classified error otherwise.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternal, "keycloak: failed to build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// get issues a GET bounded by the configured timeout.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternal, "keycloak: failed to build request")
	}
	return c.do(req)
}

// do executes the request and reads a size-limited body. Non-200 statuses
// become errors carrying the status code in details.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, sserr.Wrap(err, sserr.CodeTimeoutDependency, "keycloak: provider request timed out")
		}
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "keycloak: provider request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "keycloak: failed to read provider response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, sserr.New(codeForStatus(resp.StatusCode),
			fmt.Sprintf("keycloak: provider returned status %d", resp.StatusCode)).
			WithDetail("status_code", resp.StatusCode)
	}
	return body, nil
}

// codeForStatus maps a provider HTTP status to a platform error code.
// Client errors from the provider keep a distinct code so RefreshToken can
// tell a rejected credential apart from an outage.
func codeForStatus(status int) sserr.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return sserr.CodeAuthentication
	case http.StatusNotFound:
		return sserr.CodeNotFound
	default:
		return sserr.CodeUnavailableDependency
	}
}

// boundContext applies the configured timeout when the caller's context
// carries no deadline.
func (c *Client) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// startSpan creates an OpenTelemetry span for a provider call.
func (c *Client) startSpan(ctx context.Context, name, realm string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("keycloak.realm", realm),
		),
	)
}

// finishSpan records an error on the span and sets the span status.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
