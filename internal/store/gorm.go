package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// GormStore implements UserStore on a gorm-managed SQLite database.
type GormStore struct {
	db     *gorm.DB
	logger observability.Logger
}

// NewGormStore opens (or creates) the database at path and migrates the
// user schema.
func NewGormStore(path string, log observability.Logger) (*GormStore, error) {
	if log == nil {
		log = observability.NopLogger()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate user schema: %w", err)
	}

	return &GormStore{db: db, logger: log}, nil
}

// FindByUsername implements UserStore.
func (s *GormStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return &user, nil
}

// FindByUsernameOrEmail implements UserStore.
func (s *GormStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return &user, nil
}

// Create implements UserStore.
func (s *GormStore) Create(ctx context.Context, user *User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return ErrDuplicateUser
	}

	return fmt.Errorf("user create failed: %w", err)
}

// isUniqueViolation matches SQLite unique constraint errors that gorm's
// error translation does not cover on older driver versions.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
