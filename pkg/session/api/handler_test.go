package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-session/pkg/authn"
	"github.com/tendant/simple-session/pkg/client"
	"github.com/tendant/simple-session/pkg/directory"
	"github.com/tendant/simple-session/pkg/session"
	"github.com/tendant/simple-session/pkg/sessionstore"
	"github.com/tendant/simple-session/pkg/tokencodec"
)

type testEnv struct {
	server *httptest.Server
	users  *directory.InMemoryRepository
	admin  directory.User
	bob    directory.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := directory.NewInMemoryRepository()
	org := users.AddOrganization(directory.Organization{Name: "Acme"})

	adminHash, err := authn.HashPassword("admin-pw")
	require.NoError(t, err)
	admin := users.AddUser(directory.User{
		Email:          "admin@acme.test",
		Name:           "Admin",
		PasswordHash:   adminHash,
		OrganizationID: &org.ID,
	})
	bobHash, err := authn.HashPassword("bob-pw")
	require.NoError(t, err)
	bob := users.AddUser(directory.User{
		Email:        "bob@acme.test",
		Name:         "Bob",
		PasswordHash: bobHash,
	})

	store := sessionstore.NewInMemoryRepository()
	codec := tokencodec.NewJwtCodec("test-secret", "simple-session", "simple-session-test")
	dirService := directory.NewService(users)
	sessionService := session.NewService(codec, store, dirService, authn.NewPasswordAuthenticator(users))

	handler := NewHandler(sessionService, dirService, NewCookieSetter(false, false))
	r := chi.NewRouter()
	r.Route("/auth", handler.RegisterRoutes)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{server: server, users: users, admin: admin, bob: bob}
}

func (e *testEnv) post(t *testing.T, path string, body any, cookie *http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	resp := e.post(t, "/auth/login", LoginRequest{Email: email, Password: password}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return accessCookie(t, resp)
}

func accessCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == client.ACCESS_TOKEN_NAME {
			return c
		}
	}
	t.Fatal("no access_token cookie in response")
	return nil
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginSetsCookie(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/auth/login", LoginRequest{Email: "admin@acme.test", Password: "admin-pw"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := accessCookie(t, resp)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.InDelta(t, int(session.DefaultSessionTTL.Seconds()), cookie.MaxAge, 5)

	body := decodeBody[TokenResponse](t, resp)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, e.admin.ID.String(), body.UserID)
	assert.NotEmpty(t, body.ExpiresAt)
}

func TestLoginBadCredentials(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/auth/login", LoginRequest{Email: "admin@acme.test", Password: "wrong"}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.post(t, "/auth/login", LoginRequest{Email: "ghost@acme.test", Password: "admin-pw"}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/auth/me", "/auth/session"} {
		resp := e.get(t, path, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
	resp := e.post(t, "/auth/logout", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutKillsSession(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.post(t, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := accessCookie(t, resp)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
	resp.Body.Close()

	// same cookie no longer authenticates
	resp = e.get(t, "/auth/me", cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeReturnsProfile(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.get(t, "/auth/me", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	profile := decodeBody[directory.UserView](t, resp)
	assert.Equal(t, e.admin.ID, profile.ID)
	assert.Equal(t, "Admin", profile.Name)
	require.NotNil(t, profile.OrganizationName)
	assert.Equal(t, "Acme", *profile.OrganizationName)
}

func TestImpersonationFlow(t *testing.T) {
	e := newTestEnv(t)
	adminCookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.post(t, "/auth/impersonate", ImpersonateRequest{
		ImpersonatorID: e.admin.ID.String(),
		TargetUserID:   e.bob.ID.String(),
	}, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bobCookie := accessCookie(t, resp)
	assert.InDelta(t, int(session.DefaultImpersonationTTL.Seconds()), bobCookie.MaxAge, 5)
	body := decodeBody[TokenResponse](t, resp)
	assert.Equal(t, e.bob.ID.String(), body.UserID)

	// the impersonated session acts as bob
	resp = e.get(t, "/auth/me", bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decodeBody[directory.UserView](t, resp)
	assert.Equal(t, e.bob.ID, profile.ID)

	// session reports who is really behind it
	resp = e.get(t, "/auth/session", bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionBody := decodeBody[SessionResponse](t, resp)
	require.NotNil(t, sessionBody.ImpersonatorName)
	assert.Equal(t, "Admin", *sessionBody.ImpersonatorName)

	// stopping hands back an admin session
	resp = e.post(t, "/auth/stop_impersonation", nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	returnCookie := accessCookie(t, resp)
	returnBody := decodeBody[TokenResponse](t, resp)
	assert.Equal(t, e.admin.ID.String(), returnBody.UserID)

	resp = e.get(t, "/auth/session", returnCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionBody = decodeBody[SessionResponse](t, resp)
	assert.Nil(t, sessionBody.ImpersonatorName)
}

func TestImpersonateUnknownTarget(t *testing.T) {
	e := newTestEnv(t)
	adminCookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.post(t, "/auth/impersonate", ImpersonateRequest{
		ImpersonatorID: e.admin.ID.String(),
		TargetUserID:   uuid.NewString(),
	}, adminCookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImpersonateInvalidBody(t *testing.T) {
	e := newTestEnv(t)
	adminCookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.post(t, "/auth/impersonate", ImpersonateRequest{
		ImpersonatorID: "not-a-uuid",
		TargetUserID:   e.bob.ID.String(),
	}, adminCookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStopImpersonationWithoutImpersonating(t *testing.T) {
	e := newTestEnv(t)
	adminCookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.post(t, "/auth/stop_impersonation", nil, adminCookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	e := newTestEnv(t)
	first := e.login(t, "admin@acme.test", "admin-pw")
	second := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.get(t, "/auth/sessions", second)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summaries := decodeBody[[]session.SessionSummary](t, resp)
	require.Len(t, summaries, 2)
	assert.True(t, summaries[0].Current)
	assert.False(t, summaries[1].Current)

	resp = e.post(t, "/auth/logout", nil, first)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.get(t, "/auth/sessions", second)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summaries = decodeBody[[]session.SessionSummary](t, resp)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Current)
}

func TestSessionWithoutImpersonation(t *testing.T) {
	e := newTestEnv(t)
	adminCookie := e.login(t, "admin@acme.test", "admin-pw")

	resp := e.get(t, "/auth/session", adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[SessionResponse](t, resp)
	assert.Nil(t, body.ImpersonatorName)
}
