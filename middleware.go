package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware resolves the logged in user for each request.  Resolution tries
// the server-side session first, then the auth token cookie/header.  A token
// that does not resolve leaves the request Anonymous; it is never a fatal
// error.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)

	// ValidateUser reports whether a resolved user id still maps to a
	// stored user.  A session or token whose user was deleted out-of-band
	// resolves to Anonymous.  Nil accepts every id.
	ValidateUser func(r *http.Request, userId string) bool
}

// EnsureReasonableDefaults fills in config values that were left unset.
func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInUserId returns the ID of the logged in user for the current
// request, or "" if the request is Anonymous.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	v := r.Context().Value(userParamNameKey(a.UserParamName))
	if v != nil {
		loggedInUserId := v.(string)
		if loggedInUserId != "" {
			return loggedInUserId
		}
	}
	return a.resolveUserId(r)
}

// resolveUserId checks the session first, then any auth token cookie/header.
// Ids that no longer resolve to a stored user are skipped.
func (a *Middleware) resolveUserId(r *http.Request) string {
	if a.SessionGetter != nil {
		userParam := a.SessionGetter(r, a.UserParamName)
		if userParam != nil && userParam != "" {
			if userId := userParam.(string); a.userResolves(r, userId) {
				return userId
			}
		}
	}

	if a.VerifyToken == nil {
		return ""
	}

	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for _, cookie := range cookiesNamed(r, a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		loggedInUserId, _, err := a.VerifyToken(authToken)
		if err == nil && loggedInUserId != "" && a.userResolves(r, loggedInUserId) {
			return loggedInUserId
		} else if err != nil {
			slog.Warn("error verifying token", "error", err)
		}
	}
	return ""
}

func (a *Middleware) userResolves(r *http.Request, userId string) bool {
	return a.ValidateUser == nil || a.ValidateUser(r, userId)
}

// ExtractUser loads the logged in user id (if any) into the request context
// for downstream handlers.  It performs no redirects.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.resolveUserId(r)
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// EnsureUser is like ExtractUser but requires an authenticated user: an
// Anonymous request is redirected to the login URL (with the original path
// as a callback param), or receives a 401 when no redirect URL is configured.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.resolveUserId(r)
			if userParam == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Login required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// Set the logged in user id into the request's context so it is available to
// all other handlers downstream.
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
