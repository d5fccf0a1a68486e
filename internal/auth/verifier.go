// Package auth verifies the opaque bearer credential presented during the
// WebSocket handshake and resolves it to a stable user identity. Verification
// happens exactly once per connection, before the upgrade.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned when the credential is missing, malformed,
// expired, or rejected.
var ErrInvalidCredential = errors.New("auth: invalid credential")

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID string
	Email  string
}

// Verifier validates a bearer credential and returns the identity it belongs
// to. Implementations must return ErrInvalidCredential (possibly wrapped) for
// any credential that cannot be accepted.
type Verifier interface {
	Verify(credential string) (Identity, error)
}

// Claims are the JWT claims issued by the account service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256-signed bearer tokens issued by the account
// service.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the embedded identity.
func (v *JWTVerifier) Verify(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrInvalidCredential
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Identity{}, ErrInvalidCredential
	}

	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// IssueToken signs a token for the given identity with the given lifetime.
// Used by tests and local tooling; production tokens come from the account
// service.
func (v *JWTVerifier) IssueToken(identity Identity, lifetime time.Duration) (string, error) {
	claims := &Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
