package service

import (
	"context"
	"io"
	"testing"
	"time"

	"spacebook/internal/apperr"
	"spacebook/internal/auth"
	"spacebook/internal/database"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newUserService(t *testing.T) (*UserService, *auth.TokenManager) {
	logger := zerolog.New(io.Discard)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return NewUserService(setupTestDB(t), tokens, &logger), tokens
}

func TestSignupAndLogin(t *testing.T) {
	svc, tokens := newUserService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "Amina", "amina@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	token, got, err := svc.Login(ctx, "amina@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	id, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, models.RoleUser, id.Role)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Amina", "amina.example.com", "pw")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Signup(ctx, "", "amina@example.com", "pw")
	assert.Equal(t, "Missing required fields", apperr.Message(err, ""))

	_, err = svc.Signup(ctx, "Amina", "amina@example.com", "pw")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "Other", "amina@example.com", "pw2")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Email already registered", apperr.Message(err, ""))
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "Amina", "amina@example.com", "s3cret")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "", "s3cret")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Email and password are required", apperr.Message(err, ""))

	_, _, err = svc.Login(ctx, "amina@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, "Invalid email or password", apperr.Message(err, ""))

	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cret")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestListAndDeleteUsers(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	user, err := svc.Signup(ctx, "Amina", "amina@example.com", "s3cret")
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, svc.DeleteUser(ctx, user.ID))
	err = svc.DeleteUser(ctx, user.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "User not found", apperr.Message(err, ""))
}
