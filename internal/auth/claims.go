package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// Tokens identify a machine or operator (sub) and carry exactly one role.
type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}
