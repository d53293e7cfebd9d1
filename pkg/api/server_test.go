package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kbase/orcidlink/pkg/kbauth"
	kbauthmocks "github.com/kbase/orcidlink/pkg/kbauth/mocks"
	"github.com/kbase/orcidlink/pkg/linking"
	"github.com/kbase/orcidlink/pkg/links"
	"github.com/kbase/orcidlink/pkg/orcid"
	orcidmocks "github.com/kbase/orcidlink/pkg/orcid/mocks"
	"github.com/kbase/orcidlink/pkg/storage"
	storagemocks "github.com/kbase/orcidlink/pkg/storage/mocks"
)

const testUIOrigin = "https://ci.kbase.us/orcidlink"

type fixture struct {
	sessions *storagemocks.MockSessionStore
	links    *storagemocks.MockLinkStore
	orcid    *orcidmocks.MockExchangeClient
	verifier *kbauthmocks.MockVerifier
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		sessions: storagemocks.NewMockSessionStore(ctrl),
		links:    storagemocks.NewMockLinkStore(ctrl),
		orcid:    orcidmocks.NewMockExchangeClient(ctrl),
		verifier: kbauthmocks.NewMockVerifier(ctrl),
	}

	linkingService := linking.NewService(
		f.sessions, f.links, f.orcid, 10*time.Minute, 14*24*time.Hour)
	linkManager := links.NewManager(f.links, f.orcid, 14*24*time.Hour)

	f.router = NewRouter(Config{
		Address:     ":0",
		Linking:     linkingService,
		Links:       linkManager,
		Verifier:    f.verifier,
		ManagerRole: "ORCIDLINK_MANAGER",
		UIOrigin:    testUIOrigin,
		Timeout:     time.Minute,
	})
	return f
}

// expectAuth arranges for a bearer token to verify as the given user.
func (f *fixture) expectAuth(token, username string) {
	f.verifier.EXPECT().GetTokenInfo(gomock.Any(), token).
		Return(&kbauth.TokenInfo{Type: "Login", User: username}, nil).AnyTimes()
}

func (f *fixture) do(method, path, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func testTokenSet() orcid.TokenSet {
	return orcid.TokenSet{
		AccessToken:  "access-token",
		TokenType:    "bearer",
		RefreshToken: "refresh-token",
		ExpiresIn:    631138518,
		Scope:        "/read-limited openid /activities/update",
		Name:         "Foo Bar",
		Orcid:        "0000-0001-2345-6789",
	}
}

func completedSessionRecord(now time.Time) *storage.SessionRecord {
	auth := testTokenSet()
	return &storage.SessionRecord{
		SessionID: "sess-1",
		Username:  "foo",
		CreatedAt: now.Add(-time.Minute).UnixMilli(),
		ExpiresAt: now.Add(9 * time.Minute).UnixMilli(),
		State:     storage.SessionStateCompleted,
		OrcidAuth: &auth,
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// No authorization header and no session cookie means the verifier is
	// never consulted.
	rec := f.do(http.MethodGet, "/api/v1/link", "", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1010, resp.Code)
}

func TestCreateLinkingSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-foo", "foo")

	f.links.EXPECT().Get(gomock.Any(), "foo").Return(nil, storage.ErrNotFound)
	f.sessions.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	rec := f.do(http.MethodPost, "/api/v1/linking-sessions", "token-foo",
		`{"username": "foo"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestCreateLinkingSessionForOtherUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-bar", "bar")

	rec := f.do(http.MethodPost, "/api/v1/linking-sessions", "token-bar",
		`{"username": "foo"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1011, resp.Code)
}

func TestCreateLinkingSessionAlreadyLinked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-foo", "foo")

	f.links.EXPECT().Get(gomock.Any(), "foo").
		Return(&storage.LinkRecord{Username: "foo", OrcidAuth: testTokenSet()}, nil)

	rec := f.do(http.MethodPost, "/api/v1/linking-sessions", "token-foo",
		`{"username": "foo"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1000, resp.Code)
}

// The session view never carries the access or refresh token.
func TestGetLinkingSessionRedactsTokens(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-foo", "foo")

	f.sessions.EXPECT().Get(gomock.Any(), "sess-1").
		Return(completedSessionRecord(time.Now()), nil)

	rec := f.do(http.MethodGet, "/api/v1/linking-sessions/sess-1", "token-foo", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "access-token")
	assert.NotContains(t, body, "refresh-token")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp["session_id"])
	auth, ok := resp["orcid_auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0000-0001-2345-6789", auth["orcid"])
}

func TestGetLinkingSessionOwnedByAnotherUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-bar", "bar")

	f.sessions.EXPECT().Get(gomock.Any(), "sess-1").
		Return(completedSessionRecord(time.Now()), nil)

	rec := f.do(http.MethodGet, "/api/v1/linking-sessions/sess-1", "token-bar", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFinishLinkingSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-foo", "foo")

	f.sessions.EXPECT().Get(gomock.Any(), "sess-1").
		Return(completedSessionRecord(time.Now()), nil)
	f.sessions.EXPECT().DeleteCompleted(gomock.Any(), "sess-1").Return(true, nil)
	f.links.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	rec := f.do(http.MethodPut, "/api/v1/linking-sessions/sess-1/finish", "token-foo", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteLinkingSessionRevokesToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-foo", "foo")

	f.sessions.EXPECT().Get(gomock.Any(), "sess-1").
		Return(completedSessionRecord(time.Now()), nil)
	f.orcid.EXPECT().Revoke(gomock.Any(), "access-token").Return(nil)
	f.sessions.EXPECT().Delete(gomock.Any(), "sess-1").Return(nil)

	rec := f.do(http.MethodDelete, "/api/v1/linking-sessions/sess-1", "token-foo", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetOwnLink(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-foo", "foo")

	now := time.Now()
	f.links.EXPECT().Get(gomock.Any(), "foo").Return(&storage.LinkRecord{
		Username:  "foo",
		OrcidAuth: testTokenSet(),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(time.Hour).UnixMilli(),
		RetiresAt: now.Add(time.Hour).UnixMilli(),
	}, nil)

	rec := f.do(http.MethodGet, "/api/v1/link", "token-foo", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0000-0001-2345-6789", resp["orcid"])
	assert.Contains(t, resp, "scope")
	assert.NotContains(t, rec.Body.String(), "access-token")
}

func TestGetOtherLinkIsMinimal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-bar", "bar")

	now := time.Now()
	f.links.EXPECT().Get(gomock.Any(), "foo").Return(&storage.LinkRecord{
		Username:  "foo",
		OrcidAuth: testTokenSet(),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(time.Hour).UnixMilli(),
		RetiresAt: now.Add(time.Hour).UnixMilli(),
	}, nil)

	rec := f.do(http.MethodGet, "/api/v1/link/foo", "token-bar", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "foo", resp["username"])
	assert.Equal(t, "0000-0001-2345-6789", resp["orcid"])
	assert.NotContains(t, resp, "scope")
	assert.NotContains(t, resp, "expires_at")
}

func TestDeleteOtherLinkRequiresManagerRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-bar", "bar")

	f.verifier.EXPECT().GetMe(gomock.Any(), "token-bar").
		Return(&kbauth.AccountInfo{User: "bar", CustomRoles: []string{}}, nil)

	rec := f.do(http.MethodDelete, "/api/v1/link/foo", "token-bar", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteOtherLinkAsManager(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectAuth("token-bar", "bar")

	f.verifier.EXPECT().GetMe(gomock.Any(), "token-bar").
		Return(&kbauth.AccountInfo{User: "bar", CustomRoles: []string{"ORCIDLINK_MANAGER"}}, nil)
	f.links.EXPECT().Get(gomock.Any(), "foo").Return(&storage.LinkRecord{
		Username:  "foo",
		OrcidAuth: testTokenSet(),
		RetiresAt: time.Now().Add(time.Hour).UnixMilli(),
	}, nil)
	f.orcid.EXPECT().Revoke(gomock.Any(), "access-token").Return(nil)
	f.links.EXPECT().Delete(gomock.Any(), "foo").Return(nil)

	rec := f.do(http.MethodDelete, "/api/v1/link/foo", "token-bar", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStatusEndpointIsUnauthenticated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/status", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
