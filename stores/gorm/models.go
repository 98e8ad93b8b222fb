package gorm

import (
	"time"

	secrets "github.com/harsh-1012/secrets"
)

// UserModel is the GORM model for users.  Username and ProviderID are
// nullable so the unique indexes only bite for rows that actually carry a
// value.
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Username     *string   `gorm:"uniqueIndex;size:64"`
	PasswordHash *string   `gorm:"size:128"`
	ProviderID   *string   `gorm:"uniqueIndex;size:128"`
	Secret       *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *secrets.User {
	return &secrets.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		ProviderID:   m.ProviderID,
		Secret:       m.Secret,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
