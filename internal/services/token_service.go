package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"authserv/internal/common"
	"authserv/internal/config"
	"authserv/internal/models"
	"authserv/internal/oauth2"
	"authserv/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService mints access/refresh pairs and OIDC ID tokens, and validates
// bearer tokens for the resource endpoints.
type TokenService interface {
	IssueTokenPair(ctx context.Context, user *models.User, client *models.Client, scope, grantType string) (*models.Token, error)
	IssueIDToken(user *models.User, clientID string, nonce *string) (string, error)
	ValidateBearerToken(ctx context.Context, raw string, requiredScopes []string) (*common.AuthContext, error)
	Revoke(ctx context.Context, token string, tokenTypeHint *string) error
}

type tokenService struct {
	tokens repositories.TokenRepository
	users  repositories.UserRepository
	cfg    *config.OAuth
}

// NewTokenService builds a token issuer around an explicit signing
// configuration; nothing here reads ambient state, so test and prod signers
// can coexist in one process.
func NewTokenService(tokens repositories.TokenRepository, users repositories.UserRepository, cfg *config.OAuth) TokenService {
	return &tokenService{tokens: tokens, users: users, cfg: cfg}
}

// IssueTokenPair generates opaque access and refresh tokens and persists them.
// The expiry comes from the per-grant-type table; implicit issuance never
// carries a refresh token.
func (s *tokenService) IssueTokenPair(ctx context.Context, user *models.User, client *models.Client, scope, grantType string) (*models.Token, error) {
	token := &models.Token{
		ID:          uuid.New(),
		UserID:      user.ID,
		ClientID:    client.ClientID,
		TokenType:   "Bearer",
		AccessToken: generateSecureToken(),
		Scope:       scope,
		IssuedAt:    time.Now(),
		ExpiresIn:   s.cfg.ExpiresIn(grantType),
	}
	if grantType != "implicit" {
		refresh := generateSecureToken()
		token.RefreshToken = &refresh
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, oauth2.StorageError(err)
	}
	return token, nil
}

// IssueIDToken builds the OIDC claims from the user's identity fields and
// signs them with the configured algorithm, key and issuer.
func (s *tokenService) IssueIDToken(user *models.User, clientID string, nonce *string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.cfg.Signing.Issuer,
		"aud": clientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(s.cfg.Signing.ExpiresIn) * time.Second).Unix(),
	}
	for name, value := range user.Claims() {
		claims[name] = value
	}
	if nonce != nil {
		claims["nonce"] = *nonce
	}

	method := jwt.GetSigningMethod(s.cfg.Signing.Algorithm)
	if method == nil {
		return "", fmt.Errorf("unsupported signing algorithm %q", s.cfg.Signing.Algorithm)
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(s.cfg.Signing.Key))
	if err != nil {
		return "", fmt.Errorf("failed to sign id_token: %w", err)
	}
	return signed, nil
}

// ValidateBearerToken looks the token up, checks revocation, expiry and scope
// containment, and returns the authenticated context for this one request.
func (s *tokenService) ValidateBearerToken(ctx context.Context, raw string, requiredScopes []string) (*common.AuthContext, error) {
	if raw == "" {
		return nil, oauth2.InvalidToken("missing bearer token")
	}

	token, err := s.tokens.GetByAccessToken(ctx, raw)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, oauth2.InvalidToken("unknown token")
		}
		return nil, oauth2.StorageError(err)
	}
	if token.Revoked {
		return nil, oauth2.InvalidToken("token has been revoked")
	}
	if token.IsAccessTokenExpired(time.Now()) {
		return nil, oauth2.InvalidToken("token has expired")
	}
	if !oauth2.ScopeAllowed(token.Scope, requiredScopes) {
		return nil, oauth2.InsufficientScope()
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, oauth2.InvalidToken("token user no longer exists")
		}
		return nil, oauth2.StorageError(err)
	}

	return &common.AuthContext{User: user, Scope: token.Scope, Token: token}, nil
}

// Revoke implements RFC 7009 semantics: the hint is tried first, then the
// other token type; an unknown token is still a success.
func (s *tokenService) Revoke(ctx context.Context, token string, tokenTypeHint *string) error {
	if tokenTypeHint != nil && *tokenTypeHint == "refresh_token" {
		if err := s.tokens.RevokeByRefreshToken(ctx, token); err != nil {
			return oauth2.StorageError(err)
		}
		return nil
	}
	if err := s.tokens.RevokeByAccessToken(ctx, token); err != nil {
		return oauth2.StorageError(err)
	}
	if err := s.tokens.RevokeByRefreshToken(ctx, token); err != nil {
		return oauth2.StorageError(err)
	}
	return nil
}

// generateSecureToken generates a cryptographically random URL-safe token.
func generateSecureToken() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
