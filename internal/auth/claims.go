package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for operator sessions.
// OrgID scopes an operator to their assistance company; capability links for
// clients and workshops never go through this shape.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
