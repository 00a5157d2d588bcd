package auth

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the identity provider asserts about a caller. Role
// and approval state live in the user store, not in the token.
type Identity struct {
	ID    string
	Email string
}

// Verifier checks a bearer token and extracts the caller's identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier verifies RS256 tokens against the provider's public key.
type JWTVerifier struct {
	pub *rsa.PublicKey
}

func NewJWTVerifier(pubPath string) (*JWTVerifier, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{pub: pub}, nil
}

func (j *JWTVerifier) Verify(token string) (Identity, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.pub, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !t.Valid {
		return Identity{}, errors.New("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}
	id := Identity{}
	for _, key := range []string{"user_id", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			id.ID = v
			break
		}
	}
	if id.ID == "" {
		return Identity{}, errors.New("user id not found in token")
	}
	if v, ok := claims["email"].(string); ok {
		id.Email = v
	}
	return id, nil
}
