package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.db")
	s, err := NewGormStore(path, nil)
	require.NoError(t, err)
	return s
}

func TestGormStore_CreateAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{
		Username:       "alice",
		HashedPassword: []byte("$2a$10$fakehash"),
		Email:          "alice@example.com",
		FirstName:      "Alice",
		LastName:       "Smith",
	}
	require.NoError(t, s.Create(ctx, user))
	assert.NotZero(t, user.ID)

	found, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "alice@example.com", found.Email)
	assert.Equal(t, []byte("$2a$10$fakehash"), found.HashedPassword)
}

func TestGormStore_FindByUsername_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGormStore_FindByUsernameOrEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{
		Username:       "bob",
		HashedPassword: []byte("hash"),
		Email:          "bob@example.com",
	}
	require.NoError(t, s.Create(ctx, user))

	byName, err := s.FindByUsernameOrEmail(ctx, "bob", "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := s.FindByUsernameOrEmail(ctx, "nobody", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = s.FindByUsernameOrEmail(ctx, "nobody", "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGormStore_Create_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &User{
		Username:       "carol",
		HashedPassword: []byte("hash"),
		Email:          "carol@example.com",
	}))

	err := s.Create(ctx, &User{
		Username:       "carol",
		HashedPassword: []byte("hash"),
		Email:          "other@example.com",
	})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestGormStore_Create_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &User{
		Username:       "dave",
		HashedPassword: []byte("hash"),
		Email:          "dave@example.com",
	}))

	err := s.Create(ctx, &User{
		Username:       "dave2",
		HashedPassword: []byte("hash"),
		Email:          "dave@example.com",
	})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}
