package auth

import (
	"errors"
	"time"

	apperrors "inputfeed/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StreamClaims authorize a viewer on the event stream. Types limits which
// event tags the viewer may subscribe to; empty means every tag.
type StreamClaims struct {
	Types []string `json:"types,omitempty"`
	jwt.RegisteredClaims
}

// Allows reports whether the claims permit subscribing to tag.
// The wildcard "*" is only allowed for unrestricted tokens.
func (c StreamClaims) Allows(tag string) bool {
	if len(c.Types) == 0 {
		return true
	}
	for _, t := range c.Types {
		if t == tag {
			return true
		}
	}
	return false
}

// TokenService issues and verifies HS256 stream tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject, optionally restricted to types.
func (s *TokenService) Issue(subject string, types []string) (string, error) {
	now := s.now()
	claims := StreamClaims{
		Types: types,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies tokenString and returns its claims. Any failure is
// reported as apperrors.ErrUnauthorized.
func (s *TokenService) Parse(tokenString string) (StreamClaims, error) {
	if tokenString == "" {
		return StreamClaims{}, apperrors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &StreamClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrUnauthorized
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return StreamClaims{}, apperrors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*StreamClaims)
	if !ok || !parsed.Valid {
		return StreamClaims{}, apperrors.ErrUnauthorized
	}
	return *claims, nil
}
