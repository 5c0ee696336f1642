// Package token issues and verifies the signed access/refresh token pair
// used by the API. Both kinds are HS256 JWTs carrying the user email as
// subject; a kind claim keeps an access token from being presented where a
// refresh token is required, and vice versa.
package token

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalid   = errors.New("invalid or expired token")
	ErrWrongKind = errors.New("wrong token kind")
	ErrRotated   = errors.New("refresh token already rotated")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	// rotated refresh-token IDs, kept until their natural expiry. Held in
	// process memory; running multiple instances needs a shared store here.
	mu      sync.Mutex
	rotated map[string]time.Time
}

func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rotated:    make(map[string]time.Time),
	}
}

// IssuePair creates a fresh access+refresh token pair for the given subject.
func (s *Service) IssuePair(email string) (Pair, error) {
	access, err := s.issue(email, kindAccess, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.issue(email, kindRefresh, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *Service) issue(email, kind string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyAccess validates an access token and returns its subject email.
func (s *Service) VerifyAccess(raw string) (string, error) {
	claims, err := s.verify(raw, kindAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyRefresh validates a refresh token and returns its subject email.
// It does not retire the token; use Rotate for an exchange.
func (s *Service) VerifyRefresh(raw string) (string, error) {
	claims, err := s.verify(raw, kindRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token's ID
// is retired, so a rotated-away refresh token cannot be replayed even though
// its signature and expiry would still check out.
func (s *Service) Rotate(raw string) (Pair, string, error) {
	claims, err := s.verify(raw, kindRefresh)
	if err != nil {
		return Pair{}, "", err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if _, seen := s.rotated[claims.ID]; seen {
		s.mu.Unlock()
		return Pair{}, "", ErrRotated
	}
	s.rotated[claims.ID] = claims.ExpiresAt.Time
	for id, exp := range s.rotated {
		if now.After(exp) {
			delete(s.rotated, id)
		}
	}
	s.mu.Unlock()

	pair, err := s.IssuePair(claims.Subject)
	if err != nil {
		return Pair{}, "", err
	}
	return pair, claims.Subject, nil
}

func (s *Service) verify(raw, kind string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
