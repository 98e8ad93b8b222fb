package secrets_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	secrets "github.com/harsh-1012/secrets"
)

// okHandler records the user id the middleware resolved for the request.
func okHandler(m *secrets.Middleware, gotUser *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUser = m.GetLoggedInUserId(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractUserResolution(t *testing.T) {
	tests := []struct {
		name       string
		sessionVal any
		cookieVal  string
		headerVal  string
		wantUser   string
	}{
		{
			name:       "session wins",
			sessionVal: "user-1",
			cookieVal:  "token-for-user-2",
			wantUser:   "user-1",
		},
		{
			name:      "cookie token fallback",
			cookieVal: "token-for-user-2",
			wantUser:  "user-2",
		},
		{
			name:      "header token fallback",
			headerVal: "token-for-user-3",
			wantUser:  "user-3",
		},
		{
			name:      "bad token is anonymous",
			cookieVal: "garbage",
			wantUser:  "",
		},
		{
			name:     "nothing is anonymous",
			wantUser: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &secrets.Middleware{
				AuthTokenCookieName: "AuthToken",
				SessionGetter: func(r *http.Request, param string) any {
					return tt.sessionVal
				},
				VerifyToken: func(tokenString string) (string, any, error) {
					var userId string
					if _, err := fmt.Sscanf(tokenString, "token-for-%s", &userId); err != nil {
						return "", nil, fmt.Errorf("bad token")
					}
					return userId, nil, nil
				},
			}

			var gotUser string
			req := httptest.NewRequest(http.MethodGet, "/submit", nil)
			if tt.cookieVal != "" {
				req.AddCookie(&http.Cookie{Name: "AuthToken", Value: tt.cookieVal})
			}
			if tt.headerVal != "" {
				req.Header.Set("Authorization", tt.headerVal)
			}
			rr := httptest.NewRecorder()
			m.ExtractUser(okHandler(m, &gotUser)).ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("ExtractUser must never block, got %d", rr.Code)
			}
			if gotUser != tt.wantUser {
				t.Errorf("Expected user %q, got %q", tt.wantUser, gotUser)
			}
		})
	}
}

// TestEnsureUserRejectsDeletedUser simulates a session whose user record was
// deleted out-of-band: the id still resolves from the session but no longer
// maps to a stored user, so the request is anonymous again.
func TestEnsureUserRejectsDeletedUser(t *testing.T) {
	m := &secrets.Middleware{
		SessionGetter: func(r *http.Request, param string) any { return "deleted-user" },
		ValidateUser:  func(r *http.Request, userId string) bool { return userId != "deleted-user" },
		GetRedirURL:   func(r *http.Request) string { return "/login" },
	}

	var gotUser string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	m.EnsureUser(okHandler(m, &gotUser)).ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected redirect for a deleted user, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Errorf("Expected redirect to /login, got %s", loc)
	}
}

func TestEnsureUserRedirectsAnonymous(t *testing.T) {
	m := &secrets.Middleware{
		GetRedirURL: func(r *http.Request) string { return "/login" },
	}

	var gotUser string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	m.EnsureUser(okHandler(m, &gotUser)).ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected redirect, got %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if loc != "/login?callbackURL=%2Fsubmit" {
		t.Errorf("Expected login redirect with callback, got %s", loc)
	}
}

func TestEnsureUserWithoutRedirectURLIs401(t *testing.T) {
	m := &secrets.Middleware{}

	var gotUser string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	m.EnsureUser(okHandler(m, &gotUser)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}
}

func TestEnsureUserPassesAuthenticated(t *testing.T) {
	m := &secrets.Middleware{
		SessionGetter: func(r *http.Request, param string) any { return "user-1" },
		GetRedirURL:   func(r *http.Request) string { return "/login" },
	}

	var gotUser string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	m.EnsureUser(okHandler(m, &gotUser)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if gotUser != "user-1" {
		t.Errorf("Expected user-1, got %q", gotUser)
	}
}
