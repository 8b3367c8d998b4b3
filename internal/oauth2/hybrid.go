package oauth2

import (
	"context"
	"net/url"

	"authserv/internal/models"
)

// hybridGrant combines the authorization_code persistence step with the
// implicit path's immediate front-channel issuance: the redirect fragment
// carries a code alongside a token and/or id_token.
type hybridGrant struct {
	engine *Engine
}

func (g *hybridGrant) Authorize(ctx context.Context, req *AuthorizationRequest, client *models.Client, user *models.User, scope string, params url.Values) error {
	if !client.CheckGrantType("authorization_code") {
		return UnauthorizedClient("client may not use the authorization_code grant")
	}

	code, err := g.engine.codeGrant.saveAuthorizationCode(ctx, req, client, user, scope)
	if err != nil {
		return err
	}
	params.Set("code", code.Code)

	responseType := normalizeResponseType(req.ResponseType)

	var token *models.Token
	if fieldPresent(responseType, "token") {
		token, err = g.engine.issuer.IssueTokenPair(ctx, user, client, scope, "implicit")
		if err != nil {
			return err
		}
	}

	var idToken string
	if fieldPresent(responseType, "id_token") {
		idToken, err = g.engine.issuer.IssueIDToken(user, client.ClientID, nonceOrNil(req.Nonce))
		if err != nil {
			return ServerError(err)
		}
	}

	fragmentCredentials(params, token, idToken)
	return nil
}
