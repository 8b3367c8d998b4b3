package oauth2

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/url"
	"time"

	"authserv/internal/models"
	"authserv/internal/repositories"

	"github.com/google/uuid"
)

// authorizationCodeGrant implements the authorization_code flow: a confirmed
// authorize call persists a single-use code, a later token call exchanges it.
type authorizationCodeGrant struct {
	engine *Engine
}

func (g *authorizationCodeGrant) GrantType() string { return "authorization_code" }

// Authorize persists a fresh code and places it in the redirect parameters.
func (g *authorizationCodeGrant) Authorize(ctx context.Context, req *AuthorizationRequest, client *models.Client, user *models.User, scope string, params url.Values) error {
	if !client.CheckGrantType(g.GrantType()) {
		return UnauthorizedClient("client may not use the authorization_code grant")
	}
	code, err := g.saveAuthorizationCode(ctx, req, client, user, scope)
	if err != nil {
		return err
	}
	params.Set("code", code.Code)
	return nil
}

func (g *authorizationCodeGrant) saveAuthorizationCode(ctx context.Context, req *AuthorizationRequest, client *models.Client, user *models.User, scope string) (*models.AuthorizationCode, error) {
	code := &models.AuthorizationCode{
		ID:          uuid.New(),
		Code:        generateCode(),
		ClientID:    client.ClientID,
		UserID:      user.ID,
		RedirectURI: req.RedirectURI,
		Scope:       scope,
		ExpiresIn:   g.engine.cfg.CodeTTL,
		AuthTime:    time.Now(),
	}
	if req.Nonce != "" {
		code.Nonce = &req.Nonce
	}
	if client.CodeChallengeMethod != nil && req.CodeChallenge != "" {
		method := req.CodeChallengeMethod
		if method == "" {
			method = *client.CodeChallengeMethod
		}
		code.CodeChallenge = &req.CodeChallenge
		code.CodeChallengeMethod = &method
	}
	if err := g.engine.codes.Create(ctx, code); err != nil {
		return nil, StorageError(err)
	}
	return code, nil
}

// Token exchanges a code for a token pair. The store delete is conditional, so
// of two concurrent exchanges of the same code exactly one wins; the loser
// observes not-found and fails with invalid_grant.
func (g *authorizationCodeGrant) Token(ctx context.Context, req *TokenRequest, client *models.Client) (*models.TokenResponse, error) {
	if !client.CheckGrantType(g.GrantType()) {
		return nil, UnauthorizedClient("client may not use the authorization_code grant")
	}
	if req.Code == "" {
		return nil, InvalidRequest(`missing "code" in request`)
	}

	code, err := g.engine.codes.ConsumeOnce(ctx, req.Code, client.ClientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, InvalidGrant("authorization code is invalid or has already been used")
		}
		return nil, StorageError(err)
	}

	if code.IsExpired(time.Now()) {
		return nil, InvalidGrant("authorization code has expired")
	}
	if code.RedirectURI != "" && code.RedirectURI != req.RedirectURI {
		return nil, InvalidGrant("redirect_uri does not match the authorization request")
	}
	if err := g.verifyCodeChallenge(client, code, req.CodeVerifier); err != nil {
		return nil, err
	}

	user, err := g.engine.authenticateCodeUser(ctx, code)
	if err != nil {
		return nil, err
	}

	token, err := g.engine.issuer.IssueTokenPair(ctx, user, client, code.Scope, g.GrantType())
	if err != nil {
		return nil, err
	}

	var idToken string
	if HasScope(code.Scope, "openid") {
		idToken, err = g.engine.issuer.IssueIDToken(user, client.ClientID, code.Nonce)
		if err != nil {
			return nil, ServerError(err)
		}
	}

	return g.engine.tokenResponse(token, idToken), nil
}

// verifyCodeChallenge checks PKCE when the client registered a challenge
// method and the authorize call supplied a challenge.
func (g *authorizationCodeGrant) verifyCodeChallenge(client *models.Client, code *models.AuthorizationCode, verifier string) error {
	if code.CodeChallenge == nil || code.CodeChallengeMethod == nil {
		return nil
	}
	if verifier == "" {
		return InvalidRequest(`missing "code_verifier" in request`)
	}
	var derived string
	switch *code.CodeChallengeMethod {
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		derived = base64.RawURLEncoding.EncodeToString(sum[:])
	case "plain":
		derived = verifier
	default:
		return InvalidRequest("unsupported code_challenge_method")
	}
	if subtle.ConstantTimeCompare([]byte(derived), []byte(*code.CodeChallenge)) != 1 {
		return InvalidGrant("code verifier does not match the challenge")
	}
	return nil
}
