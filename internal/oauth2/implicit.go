package oauth2

import (
	"context"
	"net/url"
	"strings"

	"authserv/internal/models"
)

// implicitGrant issues credentials directly in the authorize response
// fragment. No intermediate credential is persisted and no refresh token is
// ever issued on this path.
type implicitGrant struct {
	engine *Engine
}

func (g *implicitGrant) GrantType() string { return "implicit" }

func (g *implicitGrant) Authorize(ctx context.Context, req *AuthorizationRequest, client *models.Client, user *models.User, scope string, params url.Values) error {
	if !client.CheckGrantType(g.GrantType()) {
		return UnauthorizedClient("client may not use the implicit grant")
	}

	responseType := normalizeResponseType(req.ResponseType)

	var token *models.Token
	if fieldPresent(responseType, "token") {
		var err error
		token, err = g.engine.issuer.IssueTokenPair(ctx, user, client, scope, g.GrantType())
		if err != nil {
			return err
		}
	}

	var idToken string
	if fieldPresent(responseType, "id_token") {
		var err error
		idToken, err = g.engine.issuer.IssueIDToken(user, client.ClientID, nonceOrNil(req.Nonce))
		if err != nil {
			return ServerError(err)
		}
	}

	fragmentCredentials(params, token, idToken)
	return nil
}

func fieldPresent(responseType, field string) bool {
	for _, part := range strings.Fields(responseType) {
		if part == field {
			return true
		}
	}
	return false
}

func nonceOrNil(nonce string) *string {
	if nonce == "" {
		return nil
	}
	return &nonce
}
