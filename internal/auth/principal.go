package auth

import (
	"crypto/ecdsa"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Elevated roles. Any form mutation requires one of these in the caller's
// role claims; the check is flat, not hierarchical.
const (
	RoleAdmin = "Admin"
	RoleOwner = "Owner"
)

// Principal is the authenticated caller extracted from the identity
// provider's claims.
type Principal struct {
	ID    string
	Name  string
	Roles []string
}

// HasElevatedRole reports whether the principal holds the Admin or Owner
// role.
func (p *Principal) HasElevatedRole() bool {
	return slices.Contains(p.Roles, RoleAdmin) || slices.Contains(p.Roles, RoleOwner)
}

// principalClaims are the claims the identity provider issues.
// Required: id, name, roles.
type principalClaims struct {
	UserID string   `json:"id"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier validates Bearer JWTs issued by the identity provider and
// extracts the caller principal.
type Verifier struct {
	publicKey *ecdsa.PublicKey
}

// NewVerifier parses a PEM-encoded EC public key for ES256 verification.
func NewVerifier(publicKeyPEM string) (*Verifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}

	publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}

	return &Verifier{publicKey: publicKey}, nil
}

// Verify parses and validates a token string, returning the principal.
func (v *Verifier) Verify(tokenStr string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &principalClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodES256 {
			return nil, errors.New("invalid signing method")
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !parsed.Valid {
		return nil, errors.New("token invalid")
	}

	claims, ok := parsed.Claims.(*principalClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token expired")
	}

	if claims.UserID == "" {
		return nil, errors.New("missing id claim")
	}

	return &Principal{
		ID:    claims.UserID,
		Name:  claims.Name,
		Roles: claims.Roles,
	}, nil
}
