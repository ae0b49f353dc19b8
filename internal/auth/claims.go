package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

// Only access tokens are accepted here. Refresh tokens belong to the session
// service and share the signing secret, so the type claim must be checked.
const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// ProspectAccess lists prospect ids a salesperson may work on; admins carry none
// and are authorized by role instead.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	ProspectAccess []string  `json:"prospect_access,omitempty"`
	TokenType      TokenType `json:"token_type"`
}
