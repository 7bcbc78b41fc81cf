// Package auth verifies the bearer tokens minted by the identity
// provider and exposes the caller identity to the rest of the service.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// Identity is the authenticated caller attached to each request.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
}

// ParseAccessToken validates the signature, issuer and expiry of a
// bearer token and returns the embedded identity.
func ParseAccessToken(cfg config.JWTConfig, token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid token")
	}
	if !parsed.Valid {
		return Identity{}, apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}
	if claims.Subject == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthorized, "token missing subject")
	}

	return Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

// IssueAccessToken mints a signed token for the identity. Used by dev
// tooling and tests; production tokens come from the identity provider.
func IssueAccessToken(cfg config.JWTConfig, identity Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
		},
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "signing token")
	}
	return signed, nil
}
