package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the bearer token issued by the SSO gateway for clients that
// cannot set identity headers, such as browser websockets.
type Claims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for actor. Used by tests and local tooling.
func IssueToken(secret string, actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: actor.ID.String(),
		Name:   actor.Name,
		Role:   string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token and returns its actor.
func ParseToken(secret []byte, tokenString string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Actor{}, err
	}
	if !token.Valid {
		return Actor{}, errors.New("invalid token")
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil || id == uuid.Nil {
		return Actor{}, errors.New("token has no valid uid")
	}
	name := claims.Name
	if name == "" {
		name = id.String()
	}
	return Actor{ID: id, Name: name, Role: ParseRole(claims.Role)}, nil
}

func bearerToken(header, query string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return query
}
