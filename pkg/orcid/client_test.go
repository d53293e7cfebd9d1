package orcid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbase/orcidlink/pkg/errors"
)

const tokenResponseBody = `{
	"access_token": "tok1",
	"token_type": "bearer",
	"refresh_token": "refresh1",
	"expires_in": 600,
	"scope": "/read-limited openid /activities/update",
	"name": "Foo Bar",
	"orcid": "0000-0001-2345-6789",
	"id_token": "eyJhbGciOi..."
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		OAuthBaseURL: server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://kbase.example.com/services/orcidlink/linking-sessions/oauth/continue",
		Timeout:      5 * time.Second,
	})
}

func oauthJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body)) //nolint:errcheck
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc123", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.NotEmpty(t, r.PostForm.Get("redirect_uri"))
		oauthJSON(w, http.StatusOK, tokenResponseBody)
	}))

	tokens, err := client.ExchangeCode(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "tok1", tokens.AccessToken)
	assert.Equal(t, "0000-0001-2345-6789", tokens.Orcid)
	assert.Equal(t, int64(600), tokens.ExpiresIn)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh1", r.PostForm.Get("refresh_token"))
		oauthJSON(w, http.StatusOK, tokenResponseBody)
	}))

	tokens, err := client.Refresh(context.Background(), "refresh1")
	require.NoError(t, err)
	assert.Equal(t, "tok1", tokens.AccessToken)
}

func TestExchangeCodeOAuthErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errorCode string
		wantKind  string
	}{
		{name: "invalid_grant is not authorized", errorCode: "invalid_grant", wantKind: errors.ErrNotAuthorized},
		{name: "unauthorized_client is not authorized", errorCode: "unauthorized_client", wantKind: errors.ErrNotAuthorized},
		{name: "invalid_request is upstream", errorCode: "invalid_request", wantKind: errors.ErrUpstream},
		{name: "invalid_client is upstream", errorCode: "invalid_client", wantKind: errors.ErrUpstream},
		{name: "unsupported_grant_type is upstream", errorCode: "unsupported_grant_type", wantKind: errors.ErrUpstream},
		{name: "invalid_scope is upstream", errorCode: "invalid_scope", wantKind: errors.ErrUpstream},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				oauthJSON(w, http.StatusBadRequest,
					`{"error": "`+tt.errorCode+`", "error_description": "nope"}`)
			}))

			_, err := client.ExchangeCode(context.Background(), "abc123")
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tt.wantKind), "got %v", err)
			assert.Contains(t, err.Error(), tt.errorCode)
		})
	}
}

func TestExchangeCodeMalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind string
	}{
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>maintenance</html>")) //nolint:errcheck
			},
			wantKind: errors.ErrUpstreamContentType,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
			},
			wantKind: errors.ErrUpstreamJSON,
		},
		{
			name: "undecodable JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				oauthJSON(w, http.StatusOK, `{"access_token": `)
			},
			wantKind: errors.ErrUpstreamJSON,
		},
		{
			name: "error status without error field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				oauthJSON(w, http.StatusBadRequest, `{}`)
			},
			wantKind: errors.ErrUpstreamJSON,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, tt.handler)
			_, err := client.ExchangeCode(context.Background(), "abc123")
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tt.wantKind), "got %v", err)
		})
	}
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/revoke", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok1", r.PostForm.Get("token"))
		// Revocation is authenticated like the token operations; ORCID
		// rejects an anonymous revoke.
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.Revoke(context.Background(), "tok1"))
}

func TestRevokeFailureIsAnError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.Revoke(context.Background(), "tok1")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrUpstream))
}

func TestAuthCodeURL(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{
		OAuthBaseURL: "https://orcid.example.com/oauth",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://kbase.example.com/continue",
		Timeout:      5 * time.Second,
	})

	consentURL, err := url.Parse(client.AuthCodeURL("session-1", false))
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", consentURL.Path)

	query := consentURL.Query()
	assert.Equal(t, "session-1", query.Get("state"))
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "https://kbase.example.com/continue", query.Get("redirect_uri"))
	assert.Equal(t, "login", query.Get("prompt"))

	skipped, err := url.Parse(client.AuthCodeURL("session-1", true))
	require.NoError(t, err)
	assert.Empty(t, skipped.Query().Get("prompt"))
}

func TestTokenSetStringRedactsSecrets(t *testing.T) {
	t.Parallel()

	tokens := TokenSet{
		AccessToken:  "tok1",
		RefreshToken: "refresh1",
		Orcid:        "0000-0001-2345-6789",
	}
	s := tokens.String()
	assert.NotContains(t, s, "tok1")
	assert.NotContains(t, s, "refresh1")
	assert.Contains(t, s, "0000-0001-2345-6789")
}
