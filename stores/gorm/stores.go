package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	secrets "github.com/harsh-1012/secrets"
)

// AutoMigrate runs database migrations for the user table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements secrets.UserStore using GORM.
//
// The database handle must be opened with gorm.Config{TranslateError: true}
// so unique-constraint violations surface as gorm.ErrDuplicatedKey; the
// duplicate-username and find-or-create paths rely on it.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*secrets.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, secrets.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*secrets.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, secrets.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) CreateLocalUser(ctx context.Context, username, passwordHash string) (*secrets.User, error) {
	model := &UserModel{
		ID:           secrets.NewUserID(),
		Username:     &username,
		PasswordHash: &passwordHash,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, secrets.ErrDuplicateUsername
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) EnsureProviderUser(ctx context.Context, providerID string) (*secrets.User, bool, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "provider_id = ?", providerID).Error
	if err == nil {
		return model.ToUser(), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := UserModel{
		ID:         secrets.NewUserID(),
		ProviderID: &providerID,
	}
	err = s.db.WithContext(ctx).Create(&created).Error
	if err == nil {
		return created.ToUser(), true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the race against a concurrent first login; the unique index
		// guarantees the winner's row exists now
		if err := s.db.WithContext(ctx).First(&model, "provider_id = ?", providerID).Error; err != nil {
			return nil, false, err
		}
		return model.ToUser(), false, nil
	}
	return nil, false, err
}

func (s *UserStore) SetSecret(ctx context.Context, userID, secret string) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Update("secret", secret)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return secrets.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListSecrets(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("secret IS NOT NULL AND secret <> ''").
		Order("updated_at").
		Pluck("secret", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
