// Package reset holds pending password-reset requests, one per email.
package reset

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	ErrNoRequest    = errors.New("no pending reset request")
	ErrExpired      = errors.New("reset code expired")
	ErrCodeMismatch = errors.New("reset code mismatch")
)

// Store keeps short-lived reset codes keyed by email. Put supersedes any
// earlier request for the same email; Consume retires the entry, so a code
// is usable at most once.
type Store interface {
	Put(email string) (code string, err error)
	Consume(email, code string) error
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is the in-process Store. Running multiple instances requires
// swapping it for a shared backend.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]entry),
	}
}

func (s *MemoryStore) Put(email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.pending[email] = entry{code: code, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return code, nil
}

// Consume checks and deletes under a single lock, so two racing confirm
// attempts for the same email cannot both succeed.
func (s *MemoryStore) Consume(email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[email]
	if !ok {
		return ErrNoRequest
	}
	if s.now().After(e.expiresAt) {
		delete(s.pending, email)
		return ErrExpired
	}
	if e.code != code {
		return ErrCodeMismatch
	}
	delete(s.pending, email)
	return nil
}

func generateCode() (string, error) {
	// Uniform 6-digit code, 100000-999999.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
