package secrets

import (
	"errors"
	"net/http"
)

// Sentinel errors returned by UserStore implementations and the auth flows.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error codes surfaced to login/register forms via the ?error= query param.
const (
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidUsername = "invalid_username"
	ErrCodeWeakPassword    = "weak_password"
	ErrCodeUsernameTaken   = "username_taken"
	ErrCodeInvalidCreds    = "invalid_credentials"
	ErrCodeProviderFailed  = "provider_failed"
	ErrCodeStoreFailed     = "store_failed"
)

// AuthError is a form-level authentication error with a stable code and the
// offending field, suitable for rendering back to the user.
type AuthError struct {
	Code    string
	Message string
	Field   string
}

func (e *AuthError) Error() string { return e.Message }

// NewAuthError creates an AuthError with the given code, message and field.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// AuthErrorHandler handles a form-level auth error.  Returning true means the
// error was handled (e.g. a redirect was written).
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool

// ErrorMessage maps an error code to the text shown on the login/register
// forms.  Unknown codes map to a generic failure message so the query param
// can never be reflected back verbatim.
func ErrorMessage(code string) string {
	switch code {
	case ErrCodeMissingField:
		return "Username and password are required."
	case ErrCodeInvalidUsername:
		return "Username must be 3-20 characters: letters, numbers, underscores, hyphens."
	case ErrCodeWeakPassword:
		return "Password must be at least 8 characters."
	case ErrCodeUsernameTaken:
		return "That username is already taken."
	case ErrCodeInvalidCreds:
		return "Invalid username or password."
	case ErrCodeProviderFailed:
		return "Sign in with the provider failed. Please try again."
	case "":
		return ""
	default:
		return "Something went wrong. Please try again."
	}
}
