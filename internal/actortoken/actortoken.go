// Package actortoken issues and validates the bearer tokens that carry an
// actor's public key into the API. The token only authenticates the key;
// whether that key may perform an operation is decided per batch by the
// custody core.
package actortoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Claims are the JWT claims for actor tokens. The actor key travels in the
// registered subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Service signs and verifies actor tokens with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue mints a token for the given actor key.
func (s *Service) Issue(actorKey domain.ActorKey, expiresIn time.Duration) (string, error) {
	key, err := domain.ParseActorKey(actorKey.String())
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign actor token")
	}
	return signed, nil
}

// Validate parses and verifies a token, returning the actor key it carries.
func (s *Service) Validate(tokenString string) (domain.ActorKey, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "actor token expired")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid actor token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid actor token")
	}
	return domain.ParseActorKey(claims.Subject)
}
