package handlers

import (
	"errors"
	"net/http"

	"authserv/internal/common"
	"authserv/internal/oauth2"
	"authserv/internal/services"

	"github.com/labstack/echo/v4"
)

// OAuthHandlers exposes the protocol endpoints: authorize, token, revoke and
// the claims APIs.
type OAuthHandlers struct {
	engine   *oauth2.Engine
	consent  services.ConsentService
	tokenSvc services.TokenService
}

func NewOAuthHandlers(engine *oauth2.Engine, consent services.ConsentService, tokenSvc services.TokenService) *OAuthHandlers {
	return &OAuthHandlers{engine: engine, consent: consent, tokenSvc: tokenSvc}
}

func authorizationRequestFromParams(get func(string) string) *oauth2.AuthorizationRequest {
	return &oauth2.AuthorizationRequest{
		ClientID:            get("client_id"),
		RedirectURI:         get("redirect_uri"),
		ResponseType:        get("response_type"),
		Scope:               get("scope"),
		State:               get("state"),
		Nonce:               get("nonce"),
		CodeChallenge:       get("code_challenge"),
		CodeChallengeMethod: get("code_challenge_method"),
	}
}

// writeOAuthError renders a protocol error in the OAuth2 wire format. Storage
// errors surface as 500 with no internal detail.
func writeOAuthError(c echo.Context, err error) error {
	var oauthErr *oauth2.Error
	if errors.As(err, &oauthErr) {
		return c.JSON(oauthErr.Status, oauthErr)
	}
	return c.JSON(http.StatusInternalServerError, oauth2.ServerError(err))
}

// AuthorizeGet starts the consent flow. Internal clients are redirected
// immediately; everyone else receives the consent prompt to render.
func (h *OAuthHandlers) AuthorizeGet(c echo.Context) error {
	req := authorizationRequestFromParams(c.QueryParam)

	outcome, err := h.consent.Prepare(c.Request().Context(), sessionToken(c), req)
	if err != nil {
		return writeOAuthError(c, err)
	}
	if outcome.Redirect != nil {
		return c.Redirect(http.StatusFound, outcome.Redirect.RedirectURI)
	}
	return c.JSON(http.StatusOK, outcome.Prompt)
}

// AuthorizePost finalizes the consent flow. A falsy confirm field denies the
// grant and the client receives access_denied on its redirect URI.
func (h *OAuthHandlers) AuthorizePost(c echo.Context) error {
	req := authorizationRequestFromParams(c.FormValue)

	confirm := c.FormValue("confirm")
	confirmed := confirm != "" && confirm != "false" && confirm != "0"

	resp, err := h.consent.Resolve(c.Request().Context(), sessionToken(c), req, confirmed)
	if err != nil {
		return writeOAuthError(c, err)
	}
	return c.Redirect(http.StatusFound, resp.RedirectURI)
}

// Token is the back-channel token endpoint. Client credentials arrive via
// HTTP Basic auth or the form body.
func (h *OAuthHandlers) Token(c echo.Context) error {
	req := &oauth2.TokenRequest{
		GrantType:    c.FormValue("grant_type"),
		Code:         c.FormValue("code"),
		RedirectURI:  c.FormValue("redirect_uri"),
		RefreshToken: c.FormValue("refresh_token"),
		CodeVerifier: c.FormValue("code_verifier"),
		Scope:        c.FormValue("scope"),
		ClientID:     c.FormValue("client_id"),
		ClientSecret: c.FormValue("client_secret"),
	}
	if clientID, clientSecret, ok := c.Request().BasicAuth(); ok {
		req.ClientID = clientID
		req.ClientSecret = clientSecret
	}

	resp, err := h.engine.Token(c.Request().Context(), req)
	if err != nil {
		return writeOAuthError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Pragma", "no-cache")
	return c.JSON(http.StatusOK, resp)
}

// Revoke implements RFC 7009: the response is success even when the token was
// unknown.
func (h *OAuthHandlers) Revoke(c echo.Context) error {
	token := c.FormValue("token")
	if token == "" {
		return writeOAuthError(c, oauth2.InvalidRequest(`missing "token" in request`))
	}
	var hint *string
	if v := c.FormValue("token_type_hint"); v != "" {
		hint = &v
	}

	if err := h.tokenSvc.Revoke(c.Request().Context(), token, hint); err != nil {
		return writeOAuthError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{})
}

// UserInfo returns the claims object for the bearer identity. Requires the
// profile scope.
func (h *OAuthHandlers) UserInfo(c echo.Context) error {
	auth, ok := common.GetAuthContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return c.JSON(http.StatusOK, auth.User.Claims())
}

// Email returns the email claims. Requires profile and email scopes.
func (h *OAuthHandlers) Email(c echo.Context) error {
	auth, ok := common.GetAuthContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"email":          auth.User.Email,
		"email_verified": auth.User.EmailVerified,
	})
}
