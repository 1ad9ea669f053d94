// Package auth issues and verifies bearer tokens.
//
// A token is an HS256 JWT whose ID is an auth session stored in the database,
// so a token stops working as soon as its session is deleted on logout even
// though the signature is still valid.
package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"

	"github.com/pavelanni/coursehub/internal/model"
)

const issuer = "coursehub"

// ErrInvalidToken is returned for malformed, forged or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by a bearer token.
type Claims struct {
	Role model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret []byte
}

// NewIssuer returns an Issuer for the given secret.
func NewIssuer(secret string) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("token secret must be at least 16 bytes")
	}
	return &Issuer{secret: []byte(secret)}, nil
}

// Issue signs a token for the user bound to the auth session.
func (i *Issuer) Issue(u model.User, sess model.AuthSession) (string, error) {
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies a token and returns its claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Issuer != issuer || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
