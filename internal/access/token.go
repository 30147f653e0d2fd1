package access

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// ScopeOperator is the only scope issued: door staff and organizers.
const ScopeOperator = "operator"

// Claims holds the operator token claims.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService handles operator token generation and validation.
type TokenService struct {
	secret      []byte
	expireHours int
	now         func() time.Time
}

// NewTokenService creates a token service.
func NewTokenService(secret []byte, expireHours int) *TokenService {
	if expireHours <= 0 {
		expireHours = 12
	}
	return &TokenService{secret: secret, expireHours: expireHours, now: time.Now}
}

// Generate creates a new operator token and returns it with its expiry.
func (s *TokenService) Generate() (string, time.Time, error) {
	now := s.now()
	expires := now.Add(time.Duration(s.expireHours) * time.Hour)
	claims := Claims{
		Scope: ScopeOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Validate parses and validates a token, returning claims or error.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Scope != ScopeOperator {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
