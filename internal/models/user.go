package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity record. Users are created on first login by username
// and never deleted by the protocol core.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Email         *string   `json:"email" db:"email"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	Name          *string   `json:"name" db:"name"`
	GivenName     *string   `json:"given_name" db:"given_name"`
	FamilyName    *string   `json:"family_name" db:"family_name"`
	PhoneNumber   *string   `json:"phone_number" db:"phone_number"`
	MobileNumber  *string   `json:"mobile_number" db:"mobile_number"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Claims returns the OpenID Connect claims this user supports.
// updated_at is expressed as epoch seconds per OIDC core.
func (u *User) Claims() map[string]interface{} {
	return map[string]interface{}{
		"sub":                u.ID.String(),
		"name":               u.Name,
		"given_name":         u.GivenName,
		"family_name":        u.FamilyName,
		"preferred_username": u.Username,
		"email":              u.Email,
		"email_verified":     u.EmailVerified,
		"phone_number":       u.PhoneNumber,
		"mobile_number":      u.MobileNumber,
		"updated_at":         u.UpdatedAt.Unix(),
	}
}
