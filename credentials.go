package secrets

import "regexp"

// Credentials represents the username/password pair submitted by the login
// and register forms.
type Credentials struct {
	Username string
	Password string
}

const minPasswordLength = 8

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// ValidateSignup validates credentials for registration.  Returns nil when
// the credentials are acceptable.
func ValidateSignup(creds *Credentials) *AuthError {
	if creds.Username == "" || creds.Password == "" {
		return NewAuthError(ErrCodeMissingField, "username and password required", "username")
	}
	if !usernameRegex.MatchString(creds.Username) {
		return NewAuthError(ErrCodeInvalidUsername, "username must be 3-20 characters and contain only letters, numbers, underscores, and hyphens", "username")
	}
	if len(creds.Password) < minPasswordLength {
		return NewAuthError(ErrCodeWeakPassword, "password must be at least 8 characters", "password")
	}
	return nil
}
