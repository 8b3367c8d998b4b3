package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthorizationCode is a short-lived single-use credential binding a user,
// client, redirect URI and granted scope. It is consumed exactly once by the
// token exchange or expires, whichever comes first.
type AuthorizationCode struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	Code                string    `json:"-" db:"code"`
	ClientID            string    `json:"client_id" db:"client_id"`
	UserID              uuid.UUID `json:"user_id" db:"user_id"`
	RedirectURI         string    `json:"redirect_uri" db:"redirect_uri"`
	Scope               string    `json:"scope" db:"scope"`
	Nonce               *string   `json:"nonce" db:"nonce"`
	CodeChallenge       *string   `json:"-" db:"code_challenge"`
	CodeChallengeMethod *string   `json:"-" db:"code_challenge_method"`
	AuthTime            time.Time `json:"auth_time" db:"auth_time"`
	ExpiresIn           int       `json:"expires_in" db:"expires_in"`
}

// IsExpired reports whether the code's TTL has elapsed.
func (c *AuthorizationCode) IsExpired(now time.Time) bool {
	return now.After(c.AuthTime.Add(time.Duration(c.ExpiresIn) * time.Second))
}
