package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authserv/internal/caching"
	"authserv/internal/models"
	"authserv/internal/repositories"

	"github.com/google/uuid"
)

var ErrNoSession = errors.New("no valid session")

// SessionService binds an authenticated browser session to a user. The
// session token is explicit: callers pass it to the consent orchestrator
// instead of relying on ambient framework state.
type SessionService interface {
	// Login upserts the user by username and issues a session token.
	Login(ctx context.Context, username string, email *string) (*models.User, string, error)
	CurrentUser(ctx context.Context, sessionToken string) (*models.User, error)
	Logout(ctx context.Context, sessionToken string) error
}

type sessionService struct {
	users      repositories.UserRepository
	cache      caching.CacheService
	sessionTTL time.Duration
}

func NewSessionService(users repositories.UserRepository, cache caching.CacheService, sessionTTL time.Duration) SessionService {
	return &sessionService{users: users, cache: cache, sessionTTL: sessionTTL}
}

func (s *sessionService) Login(ctx context.Context, username string, email *string) (*models.User, string, error) {
	if username == "" {
		return nil, "", fmt.Errorf("username is required")
	}

	user, err := s.users.Upsert(ctx, &models.User{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
	})
	if err != nil {
		return nil, "", err
	}

	sessionToken := generateSecureToken()
	if err := s.cache.SetSession(ctx, sessionToken, user.ID.String(), s.sessionTTL); err != nil {
		return nil, "", fmt.Errorf("failed to store session: %w", err)
	}
	return user, sessionToken, nil
}

func (s *sessionService) CurrentUser(ctx context.Context, sessionToken string) (*models.User, error) {
	if sessionToken == "" {
		return nil, ErrNoSession
	}
	userID, err := s.cache.GetSession(ctx, sessionToken)
	if err != nil {
		return nil, ErrNoSession
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNoSession
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return user, nil
}

func (s *sessionService) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	return s.cache.DeleteSession(ctx, sessionToken)
}
