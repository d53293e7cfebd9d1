package kbauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbase/orcidlink/pkg/cache"
	"github.com/kbase/orcidlink/pkg/errors"
)

const tokenInfoBody = `{
	"type": "Login",
	"id": "b8c84af6-1f44-4b0f-8f33-6b3e0e54c8ef",
	"expires": 1717372800000,
	"created": 1717286400000,
	"name": "Login",
	"user": "foo",
	"cachefor": 300000
}`

const meBody = `{
	"user": "foo",
	"display": "Foo Bar",
	"email": "foo@example.com",
	"created": 1700000000000,
	"lastlogin": 1717286400000,
	"roles": [{"id": "DevToken", "desc": "Can create developer tokens"}],
	"customroles": ["ORCIDLINK_MANAGER"],
	"idents": [],
	"policyids": []
}`

func newClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, 5*time.Second, cache.New(100), 5*time.Minute)
	return client, server
}

func jsonResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body)) //nolint:errcheck
}

func TestGetTokenInfo(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/V2/token", r.URL.Path)
		assert.Equal(t, "some-token", r.Header.Get("Authorization"))
		jsonResponse(w, http.StatusOK, tokenInfoBody)
	}))

	info, err := client.GetTokenInfo(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "foo", info.User)
	assert.Equal(t, int64(300000), info.CacheFor)

	// A second verification within the TTL is served from cache.
	info, err = client.GetTokenInfo(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "foo", info.User)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetTokenInfoEmptyToken(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("upstream must not be called for an empty credential")
	}))

	_, err := client.GetTokenInfo(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorizationRequired(err))
	assert.Equal(t, 1010, errors.Code(err))
}

func TestGetTokenInfoInvalidToken(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusUnauthorized,
			`{"error": {"appcode": 10020, "apperror": "Invalid token", "message": "10020 Invalid token"}}`)
	}))

	_, err := client.GetTokenInfo(context.Background(), "bad-token")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorizationRequired(err))
}

func TestGetTokenInfoExpiredToken(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusUnauthorized,
			`{"error": {"appcode": 10011, "apperror": "Token expired", "message": "10011 Token expired"}}`)
	}))

	_, err := client.GetTokenInfo(context.Background(), "stale-token")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorizationRequired(err))
}

func TestGetTokenInfoOtherUpstreamError(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusInternalServerError,
			`{"error": {"appcode": 0, "apperror": "Unexpected", "message": "auth service exploded"}}`)
	}))

	_, err := client.GetTokenInfo(context.Background(), "some-token")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrUpstream))
	assert.Contains(t, err.Error(), "auth service exploded")
}

func TestGetTokenInfoWrongContentType(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>proxy error</html>")) //nolint:errcheck
	}))

	_, err := client.GetTokenInfo(context.Background(), "some-token")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrUpstreamContentType))
	assert.Equal(t, 1041, errors.Code(err))
}

func TestGetTokenInfoUndecodableJSON(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, `{"user": `)
	}))

	_, err := client.GetTokenInfo(context.Background(), "some-token")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrUpstreamJSON))
	assert.Equal(t, 1042, errors.Code(err))
}

func TestGetTokenInfoConnectionFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, time.Second, cache.New(100), 5*time.Minute)

	_, err := client.GetTokenInfo(context.Background(), "some-token")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrUpstream))
}

func TestGetTokenInfoCacheHintShorterThanDefault(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, tokenInfoBody)
	}))

	// tokenInfoBody advertises a 5 minute hint; default is also 5 minutes.
	assert.Equal(t, 5*time.Minute, client.ttlFor(300000))
	// A shorter hint wins over the default.
	assert.Equal(t, 30*time.Second, client.ttlFor(30000))
	// A zero or negative hint falls back to the default.
	assert.Equal(t, 5*time.Minute, client.ttlFor(0))

	_, err := client.GetTokenInfo(context.Background(), "some-token")
	require.NoError(t, err)
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/V2/me", r.URL.Path)
		jsonResponse(w, http.StatusOK, meBody)
	}))

	account, err := client.GetMe(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "foo", account.User)
	assert.True(t, account.HasCustomRole("ORCIDLINK_MANAGER"))
	assert.False(t, account.HasCustomRole("SOME_OTHER_ROLE"))

	_, err = client.GetMe(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenAndAccountCacheEntriesAreDistinct(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/V2/token":
			jsonResponse(w, http.StatusOK, tokenInfoBody)
		case "/api/V2/me":
			jsonResponse(w, http.StatusOK, meBody)
		default:
			http.NotFound(w, r)
		}
	}))

	info, err := client.GetTokenInfo(context.Background(), "some-token")
	require.NoError(t, err)
	account, err := client.GetMe(context.Background(), "some-token")
	require.NoError(t, err)

	assert.Equal(t, info.User, account.User)
	assert.Equal(t, "Foo Bar", account.Display)
}
