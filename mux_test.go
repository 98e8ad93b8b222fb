package secrets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"

	secrets "github.com/harsh-1012/secrets"
	"github.com/harsh-1012/secrets/stores/fs"
)

func newTestAuth(t *testing.T) *secrets.Auth {
	t.Helper()
	store := fs.NewFSUserStore(t.TempDir())
	return secrets.NewAuth("TestApp", store, scs.New())
}

func TestEnsureDefaults(t *testing.T) {
	auth := newTestAuth(t)

	if auth.JwtIssuer != "TestApp-Issuer" {
		t.Errorf("Expected issuer TestApp-Issuer, got %s", auth.JwtIssuer)
	}
	if auth.AuthTokenSessionVar != "TestAppAuthToken" {
		t.Errorf("Expected session var TestAppAuthToken, got %s", auth.AuthTokenSessionVar)
	}
	if auth.PostLoginURL != "/secrets" {
		t.Errorf("Expected post-login URL /secrets, got %s", auth.PostLoginURL)
	}
	if auth.Middleware.UserParamName != "loggedInUserId" {
		t.Errorf("Expected middleware defaults applied, got %q", auth.Middleware.UserParamName)
	}
	if auth.Middleware.VerifyToken == nil || auth.Middleware.SessionGetter == nil {
		t.Error("Expected middleware token/session resolution to be wired")
	}
}

// TestAuthTokenRoundTrip logs a user in, then presents only the minted auth
// token cookie (no server-side session) and expects the middleware to resolve
// the same user id.
func TestAuthTokenRoundTrip(t *testing.T) {
	auth := newTestAuth(t)
	user, err := auth.Store.CreateLocalUser(context.Background(), "alice", "hash")
	if err != nil {
		t.Fatalf("CreateLocalUser failed: %v", err)
	}

	var token string
	login := auth.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = auth.SetLoggedInUser(user, w, r)
	}))
	rr := httptest.NewRecorder()
	login.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if token == "" {
		t.Fatal("Expected a signed auth token")
	}

	var gotUser string
	check := auth.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.Middleware.GetLoggedInUserId(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenSessionVar, Value: token})
	check.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != user.ID {
		t.Errorf("Expected user %s from auth token, got %q", user.ID, gotUser)
	}
}

func TestAuthTokenTamperedIsAnonymous(t *testing.T) {
	auth := newTestAuth(t)
	user, err := auth.Store.CreateLocalUser(context.Background(), "alice", "hash")
	if err != nil {
		t.Fatalf("CreateLocalUser failed: %v", err)
	}

	var token string
	login := auth.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = auth.SetLoggedInUser(user, w, r)
	}))
	login.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var gotUser string
	check := auth.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.Middleware.GetLoggedInUserId(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenSessionVar, Value: token + "x"})
	check.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != "" {
		t.Errorf("Expected tampered token to resolve to anonymous, got %q", gotUser)
	}
}

// TestLogoutRevokesAuthToken logs in, logs out with the minted token cookie
// attached, then replays a copy of the token.  The copy must no longer
// resolve even though it is still within its expiry window.
func TestLogoutRevokesAuthToken(t *testing.T) {
	auth := newTestAuth(t)
	user, err := auth.Store.CreateLocalUser(context.Background(), "alice", "hash")
	if err != nil {
		t.Fatalf("CreateLocalUser failed: %v", err)
	}

	var token string
	login := auth.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = auth.SetLoggedInUser(user, w, r)
	}))
	login.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if token == "" {
		t.Fatal("Expected a signed auth token")
	}

	logout := auth.Session.LoadAndSave(http.HandlerFunc(auth.HandleLogout))
	logoutReq := httptest.NewRequest(http.MethodGet, "/logout", nil)
	logoutReq.AddCookie(&http.Cookie{Name: auth.AuthTokenSessionVar, Value: token})
	logout.ServeHTTP(httptest.NewRecorder(), logoutReq)

	var gotUser string
	check := auth.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.Middleware.GetLoggedInUserId(r)
	}))
	replay := httptest.NewRequest(http.MethodGet, "/", nil)
	replay.AddCookie(&http.Cookie{Name: auth.AuthTokenSessionVar, Value: token})
	check.ServeHTTP(httptest.NewRecorder(), replay)

	if gotUser != "" {
		t.Errorf("Expected revoked token to resolve to anonymous, got %q", gotUser)
	}
}

func TestHandleLogoutAlwaysRedirectsHome(t *testing.T) {
	auth := newTestAuth(t)

	handler := auth.Session.LoadAndSave(http.HandlerFunc(auth.HandleLogout))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected redirect, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("Expected redirect to /, got %s", loc)
	}
}
