package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	secrets "github.com/harsh-1012/secrets"
)

// UserEntity is the Datastore entity for users.  Optional fields are stored
// as empty strings; HasSecret is maintained alongside Secret so the secrets
// listing can use an equality filter instead of an inequality index.
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Username     string         `datastore:"username"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	ProviderID   string         `datastore:"provider_id"`
	Secret       string         `datastore:"secret,noindex"`
	HasSecret    bool           `datastore:"has_secret"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *secrets.User {
	user := &secrets.User{
		ID:        e.Key.Name,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Username != "" {
		username := e.Username
		user.Username = &username
	}
	if e.PasswordHash != "" {
		hash := e.PasswordHash
		user.PasswordHash = &hash
	}
	if e.ProviderID != "" {
		providerID := e.ProviderID
		user.ProviderID = &providerID
	}
	if e.HasSecret {
		secret := e.Secret
		user.Secret = &secret
	}
	return user
}

// UsernameEntity reserves a username.
// Key: the normalized (lowercase) username.
type UsernameEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Username  string         `datastore:"username"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

// ProviderIDEntity maps an external provider identifier to a user.
// Key: the provider identifier.
type ProviderIDEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}
