package keycloak

import (
	"net/url"
	"strings"
	"time"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(), and
// MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method.
type Secret string

// redacted is the placeholder string returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return redacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return redacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required
// (e.g., attaching client credentials to a token request).
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder so the secret never leaks into JSON or YAML output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// DefaultTimeout is the default per-request timeout applied to identity
// provider calls when the caller's context carries no deadline.
const DefaultTimeout = 10 * time.Second

// Config holds the connection settings for a Keycloak-compatible identity
// provider. BaseURL points at the server root; realm names are supplied
// per call, not in the config, so one client serves every realm.
type Config struct {
	// BaseURL is the identity provider server root, e.g.
	// "https://auth.example.com". Realm paths are appended per request.
	BaseURL string `json:"base_url" env:"KEYCLOAK_BASE_URL"`

	// ClientID is the confidential client used for introspection and
	// token refresh calls.
	ClientID string `json:"client_id" env:"KEYCLOAK_CLIENT_ID"`

	// ClientSecret is the confidential client's secret. The Secret type
	// prevents accidental logging of the value.
	ClientSecret Secret `json:"-" env:"KEYCLOAK_CLIENT_SECRET"`

	// Timeout bounds every HTTP call to the provider. Applied when the
	// caller's context has no deadline. Defaults to [DefaultTimeout].
	Timeout time.Duration `json:"timeout" env:"KEYCLOAK_TIMEOUT" envDefault:"10s"`

	// HTTPClient overrides the HTTP client used for provider calls. If
	// nil, a default [http.Client] with Timeout is used. Useful for
	// tests and custom transports (mTLS, proxies).
	HTTPClient HTTPClient `json:"-"`
}

// DefaultConfig returns a Config with default settings. BaseURL, ClientID,
// and ClientSecret must still be provided by the caller.
func DefaultConfig() *Config {
	return &Config{
		Timeout: DefaultTimeout,
	}
}

// Validate checks the configuration for logical correctness and returns a
// *[sserr.Error] with code [sserr.CodeValidation] if any field is invalid.
func (c *Config) Validate() *sserr.Error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return sserr.New(sserr.CodeValidationRequired, "keycloak: base URL must not be empty")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return sserr.Newf(sserr.CodeValidationFormat, "keycloak: base URL %q is not a valid absolute URL", c.BaseURL)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return sserr.New(sserr.CodeValidationRequired, "keycloak: client ID must not be empty")
	}
	if c.Timeout < 0 {
		return sserr.New(sserr.CodeValidationRange, "keycloak: timeout must be non-negative")
	}
	return nil
}

// applyDefaults fills zero-valued optional fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}
