package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Password  string `json:"password" validate:"required"`
	SessionID string `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Roles       []RoleName `json:"roles"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string     `json:"user_id"`
	Name   string     `json:"name"`
	Roles  []RoleName `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token carries the named role. Nil claims hold no roles.
func (c *JWTClaims) HasRole(role RoleName) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (c *JWTClaims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// ChangePasswordRequest is submitted by a signed-in user replacing their password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}
