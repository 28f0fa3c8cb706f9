package iam

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Sriharan2222/medlog/pkg/types"
)

// TokenTTL is the fixed lifetime of an identity token
const TokenTTL = 24 * time.Hour

// TokenIssuer signs HS256 identity tokens
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// IssueToken signs a token carrying the user's ID and role
func (ti *TokenIssuer) IssueToken(user *types.User) (string, error) {
	now := ti.now()

	claims := &types.TokenClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
