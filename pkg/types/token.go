package types

import "github.com/golang-jwt/jwt/v5"

// TokenClaims represents the identity token's claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
