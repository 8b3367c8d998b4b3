package oauth2

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"authserv/internal/config"
	"authserv/internal/models"
	"authserv/internal/repositories"
)

// Issuer mints credentials on behalf of the grant strategies. Implemented by
// services.TokenService.
type Issuer interface {
	IssueTokenPair(ctx context.Context, user *models.User, client *models.Client, scope, grantType string) (*models.Token, error)
	IssueIDToken(user *models.User, clientID string, nonce *string) (string, error)
}

// AuthorizationRequest carries the parameters of a GET/POST /oauth/authorize call.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenRequest carries the parameters of a POST /oauth/token call. Client
// credentials may arrive via Basic auth or the form body; the handler fills
// both into ClientID/ClientSecret.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	RefreshToken string
	CodeVerifier string
	Scope        string
	ClientID     string
	ClientSecret string
}

// AuthorizationResponse is the outcome of a resolved authorization: a redirect
// back to the client carrying either a code (query) or front-channel
// credentials (fragment).
type AuthorizationResponse struct {
	RedirectURI string
}

// Engine dispatches OAuth2/OIDC grant processing. All cross-request state
// lives in the credential store; the engine itself is safe for concurrent use.
type Engine struct {
	clients repositories.ClientRepository
	codes   repositories.CodeRepository
	tokens  repositories.TokenRepository
	users   repositories.UserRepository
	issuer  Issuer
	cfg     *config.OAuth

	codeGrant    *authorizationCodeGrant
	implicit     *implicitGrant
	hybrid       *hybridGrant
	refreshGrant *refreshTokenGrant
	tokenGrants  map[string]tokenGrant
}

// tokenGrant is the back-channel strategy contract: one implementation per
// grant_type accepted by the token endpoint.
type tokenGrant interface {
	GrantType() string
	Token(ctx context.Context, req *TokenRequest, client *models.Client) (*models.TokenResponse, error)
}

func NewEngine(clients repositories.ClientRepository, codes repositories.CodeRepository,
	tokens repositories.TokenRepository, users repositories.UserRepository,
	issuer Issuer, cfg *config.OAuth) *Engine {

	e := &Engine{
		clients: clients,
		codes:   codes,
		tokens:  tokens,
		users:   users,
		issuer:  issuer,
		cfg:     cfg,
	}
	e.codeGrant = &authorizationCodeGrant{engine: e}
	e.implicit = &implicitGrant{engine: e}
	e.hybrid = &hybridGrant{engine: e}
	e.refreshGrant = &refreshTokenGrant{engine: e}
	e.tokenGrants = map[string]tokenGrant{
		e.codeGrant.GrantType():    e.codeGrant,
		e.refreshGrant.GrantType(): e.refreshGrant,
	}
	return e
}

// ValidateAuthorization checks client, redirect URI, response type, scope and
// nonce before any credential is created. Returns the client and the granted
// (possibly narrowed) scope.
func (e *Engine) ValidateAuthorization(ctx context.Context, req *AuthorizationRequest) (*models.Client, string, error) {
	if req.ClientID == "" {
		return nil, "", InvalidRequest(`missing "client_id" in request`)
	}

	client, err := e.clients.GetByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", InvalidClient("unknown client")
		}
		return nil, "", StorageError(err)
	}

	if req.RedirectURI == "" {
		return nil, "", InvalidRequest(`missing "redirect_uri" in request`)
	}
	if !client.CheckRedirectURI(req.RedirectURI) {
		return nil, "", InvalidRequest("redirect_uri is not registered for this client")
	}

	responseType := normalizeResponseType(req.ResponseType)
	if responseType == "" {
		return nil, "", InvalidRequest(`missing "response_type" in request`)
	}
	if !knownResponseType(responseType) {
		return nil, "", UnsupportedResponseType(req.ResponseType)
	}
	if responseType != "code" && !e.cfg.AllowImplicitFlow {
		return nil, "", UnsupportedResponseType(req.ResponseType)
	}
	if !client.CheckResponseType(responseType) {
		return nil, "", UnauthorizedClient("response type is not allowed for this client")
	}

	granted := IntersectScope(client.Scope, req.Scope)
	if e.cfg.StrictScope && granted != strings.Join(ParseScope(req.Scope), " ") {
		return nil, "", InvalidScope("requested scope exceeds the client registration")
	}
	if req.Scope != "" && granted == "" {
		return nil, "", InvalidScope("none of the requested scopes are registered for this client")
	}

	// Front-channel ID token issuance requires a nonce; the code flow may
	// supply one. A supplied nonce is never reused for the same client.
	if e.requiresNonce(responseType) && req.Nonce == "" {
		return nil, "", InvalidRequest(`missing "nonce" in request`)
	}
	if req.Nonce != "" {
		exists, err := e.codes.ExistsNonce(ctx, client.ClientID, req.Nonce)
		if err != nil {
			return nil, "", StorageError(err)
		}
		if exists {
			return nil, "", InvalidRequest("nonce has already been used")
		}
	}

	return client, granted, nil
}

func (e *Engine) requiresNonce(responseType string) bool {
	return strings.Contains(responseType, "id_token")
}

// Authorize resolves a confirmed (or denied) authorization request. A nil
// grantUser means the resource owner declined consent.
func (e *Engine) Authorize(ctx context.Context, req *AuthorizationRequest, grantUser *models.User) (*AuthorizationResponse, error) {
	client, granted, err := e.ValidateAuthorization(ctx, req)
	if err != nil {
		return nil, err
	}
	if grantUser == nil {
		return nil, AccessDenied()
	}

	responseType := normalizeResponseType(req.ResponseType)
	params := url.Values{}

	switch {
	case responseType == "code":
		if err := e.codeGrant.Authorize(ctx, req, client, grantUser, granted, params); err != nil {
			return nil, err
		}
	case strings.Contains(responseType, "code"):
		if err := e.hybrid.Authorize(ctx, req, client, grantUser, granted, params); err != nil {
			return nil, err
		}
	default:
		if err := e.implicit.Authorize(ctx, req, client, grantUser, granted, params); err != nil {
			return nil, err
		}
	}

	if req.State != "" {
		params.Set("state", req.State)
	}

	// A bare code response uses the query component; any response type that
	// carries front-channel credentials uses the fragment.
	inFragment := responseType != "code"
	return &AuthorizationResponse{RedirectURI: buildRedirect(req.RedirectURI, params, inFragment)}, nil
}

// ErrorRedirect renders a protocol error as redirect parameters, used once the
// redirect URI itself has been validated.
func (e *Engine) ErrorRedirect(req *AuthorizationRequest, oauthErr *Error) *AuthorizationResponse {
	params := url.Values{}
	params.Set("error", oauthErr.Code)
	if oauthErr.Description != "" {
		params.Set("error_description", oauthErr.Description)
	}
	if req.State != "" {
		params.Set("state", req.State)
	}
	inFragment := normalizeResponseType(req.ResponseType) != "code"
	return &AuthorizationResponse{RedirectURI: buildRedirect(req.RedirectURI, params, inFragment)}
}

// Token processes a back-channel token request: authenticate the client, then
// dispatch to the grant strategy named by grant_type.
func (e *Engine) Token(ctx context.Context, req *TokenRequest) (*models.TokenResponse, error) {
	client, err := e.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	grant, ok := e.tokenGrants[req.GrantType]
	if !ok {
		if req.GrantType == "" {
			return nil, InvalidRequest(`missing "grant_type" in request`)
		}
		return nil, UnsupportedGrantType(req.GrantType)
	}
	return grant.Token(ctx, req, client)
}

func (e *Engine) authenticateClient(ctx context.Context, req *TokenRequest) (*models.Client, error) {
	if req.ClientID == "" {
		return nil, InvalidClient("client authentication required")
	}
	client, err := e.clients.GetByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, InvalidClient("unknown client")
		}
		return nil, StorageError(err)
	}
	// Public clients carry an empty secret; everyone else must present an
	// exact match, compared in constant time.
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(req.ClientSecret)) != 1 {
		return nil, InvalidClient("client authentication failed")
	}
	return client, nil
}

func (e *Engine) authenticateCodeUser(ctx context.Context, code *models.AuthorizationCode) (*models.User, error) {
	user, err := e.users.GetByID(ctx, code.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, InvalidGrant("there is no user bound to this authorization code")
		}
		return nil, StorageError(err)
	}
	return user, nil
}

func (e *Engine) tokenResponse(token *models.Token, idToken string) *models.TokenResponse {
	resp := &models.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		Scope:       token.Scope,
		IDToken:     idToken,
	}
	if token.RefreshToken != nil {
		resp.RefreshToken = *token.RefreshToken
	}
	return resp
}

var validResponseTypes = map[string]bool{
	"code":                true,
	"token":               true,
	"id_token":            true,
	"id_token token":      true,
	"code token":          true,
	"code id_token":       true,
	"code id_token token": true,
}

func knownResponseType(normalized string) bool {
	return validResponseTypes[normalized]
}

// normalizeResponseType sorts the space-delimited response_type tokens into a
// canonical order so "token id_token" and "id_token token" compare equal.
func normalizeResponseType(responseType string) string {
	parts := strings.Fields(responseType)
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func buildRedirect(redirectURI string, params url.Values, inFragment bool) string {
	if inFragment {
		return redirectURI + "#" + params.Encode()
	}
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + params.Encode()
}

func fragmentCredentials(params url.Values, token *models.Token, idToken string) {
	if token != nil {
		params.Set("access_token", token.AccessToken)
		params.Set("token_type", token.TokenType)
		params.Set("expires_in", strconv.Itoa(token.ExpiresIn))
		params.Set("scope", token.Scope)
	}
	if idToken != "" {
		params.Set("id_token", idToken)
	}
}

// generateCode produces an unguessable URL-safe credential string.
func generateCode() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
