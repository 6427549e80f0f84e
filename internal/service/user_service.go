package service

import (
	"context"
	"errors"
	"strings"

	"spacebook/internal/apperr"
	"spacebook/internal/auth"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.UserRepository
	tokens *auth.TokenManager
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, tokens *auth.TokenManager, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, logger: logger}
}

// Signup registers a user with the default role and returns it.
func (s *UserService) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("Invalid email address")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: models.RoleUser}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Validation("Email already registered")
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user signed up")
	return user, nil
}

// Login checks credentials and issues a bearer token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", nil, apperr.Validation("Email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return "", nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, apperr.Auth("Invalid email or password")
	}

	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	err := s.repo.DeleteUser(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err == nil {
		s.logger.Info().Int64("user_id", id).Msg("user deleted")
	}
	return err
}
