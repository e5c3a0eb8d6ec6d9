package keycloak

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// newTestClient builds a client pointed at the given test server.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		BaseURL:      server.URL,
		ClientID:     "test-client",
		ClientSecret: "test-secret",
	})
	require.NoError(t, err)
	return client
}

// ===========================================================================
// Config Tests
// ===========================================================================

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid config",
			config: Config{BaseURL: "https://auth.example.com", ClientID: "backend"},
		},
		{
			name:    "missing base URL",
			config:  Config{ClientID: "backend"},
			wantErr: true,
		},
		{
			name:    "relative base URL",
			config:  Config{BaseURL: "auth.example.com", ClientID: "backend"},
			wantErr: true,
		},
		{
			name:    "missing client ID",
			config:  Config{BaseURL: "https://auth.example.com"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  Config{BaseURL: "https://auth.example.com", ClientID: "backend", Timeout: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "VAL", err.Code.Category())
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	t.Parallel()
	secret := Secret("super-secret-value")

	assert.Equal(t, redacted, secret.String())
	assert.Equal(t, redacted, fmt.Sprintf("%v", secret))
	assert.Equal(t, redacted, fmt.Sprintf("%#v", secret))
	assert.Equal(t, "super-secret-value", secret.Value())

	text, err := secret.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, redacted, string(text))
}

// ===========================================================================
// Introspect Tests
// ===========================================================================

func TestClient_Introspect_ActiveToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/realms/acme/protocol/openid-connect/token/introspect", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-token", r.PostForm.Get("token"))
		assert.Equal(t, "test-client", r.PostForm.Get("client_id"))
		assert.Equal(t, "test-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"active": true,
			"sub":    "user-1",
			"scope":  "openid profile",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.Introspect(context.Background(), "the-token", "acme")
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, "user-1", result.Claims["sub"])
}

func TestClient_Introspect_InactiveToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"active": false})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.Introspect(context.Background(), "revoked-token", "acme")
	require.NoError(t, err, "an inactive token is a definitive answer, not an error")
	assert.False(t, result.Active)
}

func TestClient_Introspect_EmptyToken(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&Config{BaseURL: "https://auth.example.com", ClientID: "backend"})
	require.NoError(t, err)

	_, err = client.Introspect(context.Background(), "", "acme")
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))
}

func TestClient_Introspect_ProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Introspect(context.Background(), "the-token", "acme")
	require.Error(t, err, "a provider failure must never read as an inactive token")
	assert.True(t, sserr.IsUnavailable(err))
	assert.True(t, sserr.IsRetryable(err))
}

func TestClient_Introspect_ProviderUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server)
	_, err := client.Introspect(context.Background(), "the-token", "acme")
	require.Error(t, err)
	assert.True(t, sserr.IsUnavailable(err))
}

// ===========================================================================
// RealmPublicKey Tests
// ===========================================================================

func TestClient_RealmPublicKey(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/acme", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"realm":      "acme",
			"public_key": base64.StdEncoding.EncodeToString(der),
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	pemKey, err := client.RealmPublicKey(context.Background(), "acme")
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(pemKey))
	require.NotNil(t, block, "returned key should be PEM-armored")
	assert.Equal(t, "PUBLIC KEY", block.Type)

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, &key.PublicKey, parsed)
}

func TestClient_RealmPublicKey_MissingKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"realm": "acme"})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.RealmPublicKey(context.Background(), "acme")
	require.Error(t, err)
	assert.True(t, sserr.IsUnavailable(err))
}

func TestClient_RealmPublicKey_UnknownRealm(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.RealmPublicKey(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, sserr.IsNotFound(err))
}

// ===========================================================================
// RefreshToken Tests
// ===========================================================================

func TestClient_RefreshToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/acme/protocol/openid-connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-refresh-token", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    300,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	pair, err := client.RefreshToken(context.Background(), "the-refresh-token", "acme")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
	assert.Equal(t, int64(300), pair.ExpiresIn)
}

func TestClient_RefreshToken_Rejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.RefreshToken(context.Background(), "stale-refresh-token", "acme")
	require.Error(t, err)
	assert.Equal(t, sserr.CodeAuthenticationInvalid, sserr.GetCode(err))
	assert.False(t, sserr.IsRetryable(err), "a rejected refresh token is not a transient failure")
}

func TestClient_RefreshToken_ProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.RefreshToken(context.Background(), "the-refresh-token", "acme")
	require.Error(t, err)
	assert.True(t, sserr.IsUnavailable(err))
}

func TestClient_RefreshToken_EmptyToken(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&Config{BaseURL: "https://auth.example.com", ClientID: "backend"})
	require.NoError(t, err)

	_, err = client.RefreshToken(context.Background(), "", "acme")
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))
}
