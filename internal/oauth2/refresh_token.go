package oauth2

import (
	"context"
	"errors"
	"time"

	"authserv/internal/models"
	"authserv/internal/repositories"
)

// refreshTokenGrant rotates refresh tokens strictly: the old token is revoked
// the moment its successor is issued, and a refresh token is never honored
// twice.
type refreshTokenGrant struct {
	engine *Engine
}

func (g *refreshTokenGrant) GrantType() string { return "refresh_token" }

func (g *refreshTokenGrant) Token(ctx context.Context, req *TokenRequest, client *models.Client) (*models.TokenResponse, error) {
	if !client.CheckGrantType(g.GrantType()) {
		return nil, UnauthorizedClient("client may not use the refresh_token grant")
	}
	if req.RefreshToken == "" {
		return nil, InvalidRequest(`missing "refresh_token" in request`)
	}

	old, err := g.engine.tokens.GetByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, InvalidGrant("refresh token is invalid")
		}
		return nil, StorageError(err)
	}
	if old.ClientID != client.ClientID {
		return nil, InvalidGrant("refresh token was not issued to this client")
	}
	if !old.IsRefreshTokenActive(time.Now(), g.engine.cfg.RefreshGraceMultiplier) {
		return nil, InvalidGrant("refresh token has expired or been revoked")
	}

	// A requested scope may only narrow the original grant.
	scope := old.Scope
	if req.Scope != "" {
		if !ScopeAllowed(old.Scope, ParseScope(req.Scope)) {
			return nil, InvalidScope("requested scope exceeds the original grant")
		}
		scope = req.Scope
	}

	// Revoke-once is conditional on revoked = false; a racing second refresh
	// of the same token loses here instead of minting a second successor.
	if err := g.engine.tokens.RevokeRefreshOnce(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, InvalidGrant("refresh token has already been rotated")
		}
		return nil, StorageError(err)
	}

	user, err := g.engine.users.GetByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, InvalidGrant("there is no user bound to this refresh token")
		}
		return nil, StorageError(err)
	}

	token, err := g.engine.issuer.IssueTokenPair(ctx, user, client, scope, g.GrantType())
	if err != nil {
		return nil, err
	}

	var idToken string
	if HasScope(scope, "openid") {
		idToken, err = g.engine.issuer.IssueIDToken(user, client.ClientID, nil)
		if err != nil {
			return nil, ServerError(err)
		}
	}

	return g.engine.tokenResponse(token, idToken), nil
}
