// Package gorm provides a GORM-based implementation of the secrets user
// store.  It supports any database that GORM supports and is the default
// backend for production deployments.
//
// # Database Schema
//
// The package auto-migrates a single table:
//   - users: user accounts (local credentials, provider identity, secret)
//
// Uniqueness of usernames and provider ids is enforced by unique indexes,
// which also back the atomic find-or-create on federated first login.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	gormstore.AutoMigrate(db)
//	userStore := gormstore.NewUserStore(db)
package gorm
