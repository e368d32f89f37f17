package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zazmarga/online-cinema/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by cinema clients.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants administrator access.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.RoleAdmin
}
