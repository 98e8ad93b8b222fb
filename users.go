package secrets

import (
	"context"
	"time"
)

// User is the single persistent entity in the system.  A user is created
// either by local registration (Username + PasswordHash set) or by the first
// federated login (ProviderID set).  Secret holds the most recently submitted
// secret text; it is a single slot, not a history.
type User struct {
	ID           string     `json:"id"`
	Username     *string    `json:"username,omitempty"`
	PasswordHash *string    `json:"password_hash,omitempty"`
	ProviderID   *string    `json:"provider_id,omitempty"`
	Secret       *string    `json:"secret,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasSecret reports whether the user has submitted a secret.
func (u *User) HasSecret() bool {
	return u.Secret != nil && *u.Secret != ""
}

// UserStore manages user accounts.  Implementations must enforce uniqueness
// of Username and ProviderID, and EnsureProviderUser must be atomic with
// respect to concurrent logins by the same external identity.
type UserStore interface {
	// GetUserByID retrieves a user by their ID.  Returns ErrUserNotFound
	// if no such user exists.
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// GetUserByUsername retrieves a local-auth user by username.
	// Returns ErrUserNotFound if no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateLocalUser creates a new user with the given username and
	// password hash.  Returns ErrDuplicateUsername if the username is
	// already taken.
	CreateLocalUser(ctx context.Context, username, passwordHash string) (*User, error)

	// EnsureProviderUser finds the user with the given provider identifier,
	// creating one if absent.  The find-or-create is atomic: two concurrent
	// first-time logins for the same identifier yield exactly one record.
	EnsureProviderUser(ctx context.Context, providerID string) (user *User, created bool, err error)

	// SetSecret overwrites the user's secret.  Returns ErrUserNotFound if
	// the user id does not resolve.
	SetSecret(ctx context.Context, userID, secret string) error

	// ListSecrets returns the secret texts of every user with a non-empty
	// secret, stripped of any user-identifying field.
	ListSecrets(ctx context.Context) ([]string, error)
}
