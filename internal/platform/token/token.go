// Package token issues and validates the bearer tokens that identify
// callers of privileged endpoints.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gavel/internal/platform/middleware"
	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

const issuer = "gavel"

// Claims are the JWT claims for engine access tokens.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// Service signs and validates HMAC tokens carrying a caller address.
type Service struct {
	signingKey []byte
}

func NewService(signingKey string) *Service {
	return &Service{signingKey: []byte(signingKey)}
}

// Issue signs a token for the given address, valid for expiresIn.
func (s *Service) Issue(addr domain.Address, expiresIn time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Address: addr.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	})
	return t.SignedString(s.signingKey)
}

// ValidateToken implements middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	addr, err := domain.ParseAddress(claims.Address)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid address claim")
	}
	return &middleware.TokenClaims{Address: addr}, nil
}
