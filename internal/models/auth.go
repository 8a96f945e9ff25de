package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of access tokens issued by the external auth service.
type TokenClaims struct {
	UserID   string   `json:"user_id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Role     UserRole `json:"role,omitempty"`
	FullName string   `json:"fullname,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user id, falling back to the subject claim.
func (c *TokenClaims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
