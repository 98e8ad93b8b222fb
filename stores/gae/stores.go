package gae

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	secrets "github.com/harsh-1012/secrets"
)

// Kind constants for Datastore entities
const (
	KindUser       = "User"
	KindUsername   = "Username"
	KindProviderID = "ProviderId"
)

// UserStore implements secrets.UserStore using Google Cloud Datastore.
// Username and ProviderId mapping entities, keyed by the unique value, give
// O(1) lookups and let find-or-create run inside a transaction.
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore.
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

// normalizeUsername converts username to lowercase for case-insensitive lookup
func (s *UserStore) normalizeUsername(username string) string {
	return strings.ToLower(username)
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*secrets.User, error) {
	key := s.namespacedKey(KindUser, userID)
	var entity UserEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, secrets.ErrUserNotFound
		}
		return nil, err
	}
	entity.Key = key
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*secrets.User, error) {
	key := s.namespacedKey(KindUsername, s.normalizeUsername(username))
	var mapping UsernameEntity
	if err := s.client.Get(ctx, key, &mapping); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, secrets.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(ctx, mapping.UserID)
}

func (s *UserStore) CreateLocalUser(ctx context.Context, username, passwordHash string) (*secrets.User, error) {
	userID := secrets.NewUserID()
	usernameKey := s.namespacedKey(KindUsername, s.normalizeUsername(username))
	userKey := s.namespacedKey(KindUser, userID)
	now := time.Now()

	entity := &UserEntity{
		Key:          userKey,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UsernameEntity
		err := tx.Get(usernameKey, &existing)
		if err == nil {
			return secrets.ErrDuplicateUsername
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		mapping := &UsernameEntity{
			Key:       usernameKey,
			Username:  username,
			UserID:    userID,
			CreatedAt: now,
		}
		if _, err := tx.Put(usernameKey, mapping); err != nil {
			return err
		}
		_, err = tx.Put(userKey, entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) EnsureProviderUser(ctx context.Context, providerID string) (*secrets.User, bool, error) {
	providerKey := s.namespacedKey(KindProviderID, providerID)
	now := time.Now()

	var resolvedUserID string
	created := false

	// The transaction makes the find-or-create atomic: a concurrent first
	// login for the same identifier forces a retry which then finds the
	// mapping.
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		resolvedUserID = ""
		created = false

		var mapping ProviderIDEntity
		err := tx.Get(providerKey, &mapping)
		if err == nil {
			resolvedUserID = mapping.UserID
			return nil
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		userID := secrets.NewUserID()
		userKey := s.namespacedKey(KindUser, userID)
		entity := &UserEntity{
			Key:        userKey,
			ProviderID: providerID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		newMapping := &ProviderIDEntity{
			Key:       providerKey,
			UserID:    userID,
			CreatedAt: now,
		}
		if _, err := tx.Put(providerKey, newMapping); err != nil {
			return err
		}
		if _, err := tx.Put(userKey, entity); err != nil {
			return err
		}
		resolvedUserID = userID
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	user, err := s.GetUserByID(ctx, resolvedUserID)
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *UserStore) SetSecret(ctx context.Context, userID, secret string) error {
	key := s.namespacedKey(KindUser, userID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return secrets.ErrUserNotFound
			}
			return err
		}
		entity.Key = key
		entity.Secret = secret
		entity.HasSecret = secret != ""
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(key, &entity)
		return err
	})
	return err
}

func (s *UserStore) ListSecrets(ctx context.Context) ([]string, error) {
	query := datastore.NewQuery(KindUser).FilterField("has_secret", "=", true)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var out []string
	it := s.client.Run(ctx, query)
	for {
		var entity UserEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if entity.Secret != "" {
			out = append(out, entity.Secret)
		}
	}
	return out, nil
}
