package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose distinguishes session tokens from email verification tokens
type TokenPurpose string

const (
	PurposeAccess       TokenPurpose = "access"
	PurposeVerification TokenPurpose = "verify"
)

// JWTClaims are the claims carried by every token we sign
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string       `json:"uid,omitempty"`
	UserRole string       `json:"role,omitempty"`
	Purpose  TokenPurpose `json:"purpose,omitempty"`
	TargetID string       `json:"tid,omitempty"`
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account id
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role claim
func (c *JWTClaims) Role() UserRole {
	return UserRole(c.UserRole)
}

// HasRole checks the role claim
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// Actor resolves the claims into the caller identity
func (c *JWTClaims) Actor() Actor {
	return Actor{
		ID:    c.UserID(),
		Email: c.Subject(),
		Role:  c.Role(),
	}
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
