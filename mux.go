package secrets

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	xoauth2 "golang.org/x/oauth2"

	"github.com/harsh-1012/secrets/oauth2"
)

// Auth owns the session lifecycle: it mints a session (plus a signed auth
// token cookie) when local or federated authentication succeeds, resolves it
// back to a user id on each request via Middleware, and tears it down on
// logout.
type Auth struct {
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name used as a prefix for session/cookie vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	// Must be passed in
	Store UserStore

	// All the domains the auth token cookies are set on at login/logout
	CookieDomains []string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long a session cookie is valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int

	// Where successful logins land.  Defaults to /secrets
	PostLoginURL string

	// Where failed federated logins land.  Defaults to /login
	LoginURL string

	// Tokens revoked by logout, keyed by token id, kept until the token
	// would have expired anyway
	revokedMu     sync.Mutex
	revokedTokens map[string]time.Time
}

// NewAuth creates an Auth around the given store and session manager.
func NewAuth(appName string, store UserStore, session *scs.SessionManager) *Auth {
	out := &Auth{AppName: appName, Store: store, Session: session}
	return out.EnsureDefaults()
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "Secrets"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.PostLoginURL == "" {
		a.PostLoginURL = "/secrets"
	}
	if a.LoginURL == "" {
		a.LoginURL = "/login"
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("SECRETS_JWT_SECRET_KEY"))
		if a.JWTSecretKey == "" {
			a.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
	a.Middleware.EnsureReasonableDefaults()
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	if a.Middleware.SessionGetter == nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.Get(r.Context(), param)
		}
	}
	if a.Middleware.GetRedirURL == nil {
		a.Middleware.GetRedirURL = func(r *http.Request) string { return a.LoginURL }
	}
	if a.Middleware.ValidateUser == nil && a.Store != nil {
		a.Middleware.ValidateUser = func(r *http.Request, userId string) bool {
			if _, err := a.Store.GetUserByID(r.Context(), userId); err != nil {
				if !errors.Is(err, ErrUserNotFound) {
					slog.Warn("error resolving session user", "err", err)
				}
				return false
			}
			return true
		}
	}
	return a
}

func (a *Auth) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	if jti, _ := claims["jti"].(string); jti != "" && a.isRevoked(jti) {
		return "", nil, fmt.Errorf("token revoked")
	}
	return sub, token, nil
}

func (a *Auth) isRevoked(jti string) bool {
	a.revokedMu.Lock()
	defer a.revokedMu.Unlock()
	expiry, ok := a.revokedTokens[jti]
	return ok && time.Now().Before(expiry)
}

// revokeToken marks a token's id as revoked.  The mark is kept only until the
// token would have expired on its own.
func (a *Auth) revokeToken(tokenString string) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil || !token.Valid {
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return
	}
	expiry := time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds))
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}

	a.revokedMu.Lock()
	defer a.revokedMu.Unlock()
	if a.revokedTokens == nil {
		a.revokedTokens = map[string]time.Time{}
	}
	now := time.Now()
	for id, exp := range a.revokedTokens {
		if exp.Before(now) {
			delete(a.revokedTokens, id)
		}
	}
	a.revokedTokens[jti] = expiry
}

// revokeRequestTokens revokes every auth token attached to the request: the
// one in the server-side session and any presented as a cookie.  Replayed
// copies of a revoked token carry the same token id and stop verifying.
func (a *Auth) revokeRequestTokens(r *http.Request) {
	if token := a.Session.GetString(r.Context(), a.AuthTokenSessionVar); token != "" {
		a.revokeToken(token)
	}
	for _, cookie := range cookiesNamed(r, a.Middleware.AuthTokenCookieName) {
		if cookie.Value != "" {
			a.revokeToken(cookie.Value)
		}
	}
}

// HandleLogout invalidates the current session.  Invalidation errors are
// logged; the user is redirected home regardless.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a.SetLoggedInUser(nil, w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLocalUser is the HandleUserFunc wired into LocalAuth: it establishes
// a session for the verified user and redirects to the secrets view.
func (a *Auth) HandleLocalUser(authtype string, provider string, user *User, w http.ResponseWriter, r *http.Request) {
	a.SetLoggedInUser(user, w, r)
	http.Redirect(w, r, a.PostLoginURL, http.StatusFound)
}

// SaveUserAndRedirect is called by the oauth callback handler with the
// resolved external identity after a successful exchange.  It maps the
// identity to a local user (create-if-absent), establishes the session, and
// redirects back to where the login started.
func (a *Auth) SaveUserAndRedirect(authtype, provider string, token *xoauth2.Token, identity *oauth2.ExternalIdentity, w http.ResponseWriter, r *http.Request) {
	if identity == nil || identity.ID == "" {
		log.Println("provider returned no usable identity")
		RedirectWithError(w, r, a.LoginURL, NewAuthError(ErrCodeProviderFailed, "provider returned no usable identity", ""))
		return
	}

	user, created, err := a.Store.EnsureProviderUser(r.Context(), identity.ID)
	if err != nil {
		slog.Warn("error ensuring provider user", "provider", provider, "err", err)
		RedirectWithError(w, r, a.LoginURL, NewAuthError(ErrCodeProviderFailed, "federated login failed", ""))
		return
	}
	if created {
		log.Printf("Created user %s for %s identity", user.ID, provider)
	}

	a.SetLoggedInUser(user, w, r)

	// Auth done - go back to where we need to be
	callbackURL := a.PostLoginURL
	callbackURLCookie, _ := r.Cookie("oauthCallbackURL")
	if callbackURLCookie != nil && callbackURLCookie.Value != "" {
		callbackURL = callbackURLCookie.Value
	}
	// delete it too so it wont be used for subsequent redirects
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthCallbackURL",
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// SetLoggedInUser sets the session var and auth token cookies for the given
// user on all configured cookie domains.  Passing nil revokes the current
// auth tokens, clears the session and unsets the cookies (logout).
func (a *Auth) SetLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}

	if user == nil {
		a.revokeRequestTokens(r)
		if err := a.Session.Clear(r.Context()); err != nil {
			slog.Warn("error clearing session", "err", err)
		}
		for _, cookieDomain := range domains {
			http.SetCookie(w, &http.Cookie{
				Name:   "oauthstate",
				Value:  "",
				MaxAge: -1, Expires: time.Now(),
				Domain: cookieDomain,
				Path:   "/",
			})
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
		return ""
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"iss": a.JwtIssuer,
		"jti": NewUserID(),
		"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
	if err != nil {
		slog.Info("error signing token", "err", err)
	}

	a.Session.Put(r.Context(), a.Middleware.UserParamName, user.ID)
	a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
	for _, cookieDomain := range domains {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Value:  "",
			MaxAge: -1, Expires: time.Now(),
			Domain: cookieDomain,
			Path:   "/",
		})
		http.SetCookie(w, &http.Cookie{
			Name:     a.AuthTokenSessionVar,
			Value:    tokenString,
			Domain:   cookieDomain,
			Path:     "/",
			HttpOnly: true,
			Expires:  time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
			MaxAge:   a.SessionTimeoutInSeconds,
		})
	}
	return tokenString
}
