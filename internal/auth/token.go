// Package auth issues and verifies the HS256 bearer tokens the API
// accepts, and serves the one-time admin bootstrap.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is what the middleware puts on the request context.
type Claims struct {
	AccountID string
	Role      string
}

// IssueToken signs a token for accountID valid for ttl.
func IssueToken(secret []byte, accountID, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": accountID,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseBearer extracts and verifies the token in an Authorization header.
func ParseBearer(secret []byte, header string) (Claims, error) {
	if header == "" {
		return Claims{}, ErrMissingToken
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) || len(header) == len(prefix) {
		return Claims{}, ErrInvalidToken
	}
	return ParseToken(secret, header[len(prefix):])
}

func ParseToken(secret []byte, tokenStr string) (Claims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	// older tokens carry the subject as "id"
	id, _ := claims["user_id"].(string)
	if id == "" {
		id, _ = claims["id"].(string)
	}
	if id == "" {
		return Claims{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	return Claims{AccountID: id, Role: role}, nil
}
