package gateway

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Sriharan2222/medlog/pkg/types"
)

// TokenValidator implements JWT token validation
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
}

// NewTokenValidator creates a new token validator. An empty issuer skips the
// issuer check.
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
	}
}

// ValidateJWT validates a JWT token and returns the caller identity
func (tv *TokenValidator) ValidateJWT(tokenString string) (*types.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if tv.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tv.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &types.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*types.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	role := types.UserRole(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return nil, fmt.Errorf("token is missing identity claims")
	}

	return &types.Identity{
		UserID: claims.UserID,
		Role:   role,
	}, nil
}
