package models

import (
	"time"

	"github.com/google/uuid"
)

// Token is an issued access/refresh token pair. Access tokens are opaque and
// validated by store lookup; refresh tokens rotate strictly (the old row is
// revoked the moment a successor is issued).
type Token struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	ClientID     string    `json:"client_id" db:"client_id"`
	TokenType    string    `json:"token_type" db:"token_type"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken *string   `json:"-" db:"refresh_token"`
	Scope        string    `json:"scope" db:"scope"`
	IssuedAt     time.Time `json:"issued_at" db:"issued_at"`
	ExpiresIn    int       `json:"expires_in" db:"expires_in"`
	Revoked      bool      `json:"revoked" db:"revoked"`
}

// IsAccessTokenExpired checks the nominal access-token lifetime.
func (t *Token) IsAccessTokenExpired(now time.Time) bool {
	return now.After(t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second))
}

// IsRefreshTokenActive reports whether the refresh token may still be used.
// The refresh window is the nominal lifetime multiplied by grace, an extended
// window distinct from the access-token expiry.
func (t *Token) IsRefreshTokenActive(now time.Time, grace int) bool {
	if t.Revoked || t.RefreshToken == nil {
		return false
	}
	window := time.Duration(t.ExpiresIn*grace) * time.Second
	return now.Before(t.IssuedAt.Add(window))
}

// TokenResponse is the wire shape returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}
