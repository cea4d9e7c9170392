// Package store provides persistent user records for the gateway.
package store

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrUserNotFound indicates that no matching user record exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser indicates that a user with the same username or
	// email already exists.
	ErrDuplicateUser = errors.New("user already exists")
)

// User is a stored user record.
type User struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	Username       string `gorm:"uniqueIndex;size:64" json:"username"`
	HashedPassword []byte `json:"-"`
	Email          string `gorm:"uniqueIndex;size:255" json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Admin          bool   `json:"admin"`
}

// UserStore is the user record collaborator consumed by the handlers.
type UserStore interface {
	// FindByUsername returns the user with the given username.
	// Returns ErrUserNotFound if no record matches.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// FindByUsernameOrEmail returns a user matching either the username
	// or the email. Used for duplicate-registration checks.
	// Returns ErrUserNotFound if no record matches.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)

	// Create persists a new user record.
	// Returns ErrDuplicateUser on a uniqueness violation.
	Create(ctx context.Context, user *User) error
}
