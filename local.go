package secrets

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
)

// HandleUserFunc is called after a successful local authentication.  The
// caller (the session layer) is responsible for establishing a session for
// the returned user and redirecting.
type HandleUserFunc func(authtype string, provider string, user *User, w http.ResponseWriter, r *http.Request)

// LocalAuth provides local username/password registration and login.
type LocalAuth struct {
	// Store holds the user records
	Store UserStore

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// LoginURL is used for redirects on login failure
	LoginURL string

	// RegisterURL is used for redirects on registration failure
	RegisterURL string

	// Form field names
	UsernameField string
	PasswordField string

	// OnLoginError is called when login fails. If nil, redirects to LoginURL.
	OnLoginError AuthErrorHandler

	// OnRegisterError is called when registration fails. If nil, redirects to RegisterURL.
	OnRegisterError AuthErrorHandler
}

// HandleRegister processes user registration requests.
func (a *LocalAuth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, "Registration not configured", http.StatusInternalServerError)
		return
	}

	creds, parseErr := a.parseForm(r)
	if parseErr != nil {
		a.handleRegisterError(parseErr, w, r)
		return
	}

	if authErr := ValidateSignup(creds); authErr != nil {
		a.handleRegisterError(authErr, w, r)
		return
	}

	passwordHash, err := HashPassword(creds.Password)
	if err != nil {
		log.Println("error hashing password: ", err)
		a.handleRegisterError(NewAuthError(ErrCodeStoreFailed, "registration failed", ""), w, r)
		return
	}

	user, err := a.Store.CreateLocalUser(r.Context(), creds.Username, passwordHash)
	if err != nil {
		log.Println("error creating user: ", err)
		if errors.Is(err, ErrDuplicateUsername) {
			a.handleRegisterError(NewAuthError(ErrCodeUsernameTaken, "username is already taken", "username"), w, r)
		} else {
			a.handleRegisterError(NewAuthError(ErrCodeStoreFailed, "registration failed", ""), w, r)
		}
		return
	}

	a.HandleUser("local", "local", user, w, r)
}

// HandleLogin processes login requests.  Any failure, including an unknown
// username, redirects back to the login form with an error indication rather
// than falling through.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, "Login not configured", http.StatusInternalServerError)
		return
	}

	creds, parseErr := a.parseForm(r)
	if parseErr != nil {
		a.handleLoginError(parseErr, w, r)
		return
	}

	user, err := a.verify(r, creds)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Println("error validating user: ", err)
		}
		a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "invalid credentials", "password"), w, r)
		return
	}

	a.HandleUser("local", "local", user, w, r)
}

// verify checks the credentials against the stored salted hash and returns
// the matching user.  Unknown usernames and wrong passwords both collapse to
// ErrInvalidCredentials.
func (a *LocalAuth) verify(r *http.Request, creds *Credentials) (*User, error) {
	user, err := a.Store.GetUserByUsername(r.Context(), creds.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == nil || !CheckPassword(*user.PasswordHash, creds.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (a *LocalAuth) parseForm(r *http.Request) (*Credentials, *AuthError) {
	if err := r.ParseForm(); err != nil {
		return nil, NewAuthError(ErrCodeMissingField, "error parsing form", "")
	}
	creds := &Credentials{
		Username: r.FormValue(a.getUsernameField()),
		Password: r.FormValue(a.getPasswordField()),
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, NewAuthError(ErrCodeMissingField, "username and password required", "username")
	}
	return creds, nil
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) getLoginURL() string {
	if a.LoginURL != "" {
		return a.LoginURL
	}
	return "/login"
}

func (a *LocalAuth) getRegisterURL() string {
	if a.RegisterURL != "" {
		return a.RegisterURL
	}
	return "/register"
}

func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	RedirectWithError(w, r, a.getLoginURL(), err)
}

func (a *LocalAuth) handleRegisterError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnRegisterError != nil && a.OnRegisterError(err, w, r) {
		return
	}
	RedirectWithError(w, r, a.getRegisterURL(), err)
}

// RedirectWithError redirects to target with the error code attached as a
// query param, so the form can surface a message.
func RedirectWithError(w http.ResponseWriter, r *http.Request, target string, err *AuthError) {
	http.Redirect(w, r, fmt.Sprintf("%s?error=%s", target, url.QueryEscape(err.Code)), http.StatusFound)
}
