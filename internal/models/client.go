package models

import (
	"time"

	"github.com/google/uuid"
)

// Token endpoint authentication methods.
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)

// Client is a registered OAuth2 application. ClientID is server-generated,
// globally unique and immutable after creation.
type Client struct {
	ID                      uuid.UUID `json:"id" db:"id"`
	ClientID                string    `json:"client_id" db:"client_id"`
	ClientSecret            string    `json:"-" db:"client_secret"` // empty for public clients
	UserID                  uuid.UUID `json:"user_id" db:"user_id"`
	ClientName              string    `json:"client_name" db:"client_name"`
	ClientURI               *string   `json:"client_uri" db:"client_uri"`
	GrantTypes              []string  `json:"grant_types" db:"grant_types"`
	ResponseTypes           []string  `json:"response_types" db:"response_types"`
	RedirectURIs            []string  `json:"redirect_uris" db:"redirect_uris"`
	Scope                   string    `json:"scope" db:"scope"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method" db:"token_endpoint_auth_method"`
	CodeChallengeMethod     *string   `json:"code_challenge_method" db:"code_challenge_method"`
	IsInternal              bool      `json:"is_internal" db:"is_internal"`
	ClientIDIssuedAt        time.Time `json:"client_id_issued_at" db:"client_id_issued_at"`
}

// CheckGrantType reports whether the client may use the given grant type.
func (c *Client) CheckGrantType(grantType string) bool {
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// CheckResponseType reports whether the client registered the given response type.
func (c *Client) CheckResponseType(responseType string) bool {
	for _, rt := range c.ResponseTypes {
		if rt == responseType {
			return true
		}
	}
	return false
}

// CheckRedirectURI requires an exact string match against the registered set.
func (c *Client) CheckRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// IsPublic reports whether the client authenticates without a secret.
func (c *Client) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}
