package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeService TokenType = "service"

// Claims are the only supported JWT claims shape for the internal API.
// Subject names the calling service (scheduler, sweeper, chatbot).
// Scopes are checked per route by internal/rbac.
type Claims struct {
	jwt.RegisteredClaims

	Scopes    []string  `json:"scopes"`
	TokenType TokenType `json:"token_type"`
}
