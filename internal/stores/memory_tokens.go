package stores

import (
	"context"
	"crypto/subtle"
	"sync"
)

type slot struct {
	email   string
	purpose Purpose
}

// MemoryTokenStore keeps tokens and codes in process memory behind one mutex.
// Expired records stay until consumed or replaced so callers can tell
// "expired" from "unknown".
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]VerificationToken
	slots  map[slot]string
	codes  map[string]OneTimeCode
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]VerificationToken),
		slots:  make(map[slot]string),
		codes:  make(map[string]OneTimeCode),
	}
}

func (s *MemoryTokenStore) SaveVerificationToken(ctx context.Context, t VerificationToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := slot{email: t.Email, purpose: t.Purpose}
	if prev, ok := s.slots[k]; ok {
		delete(s.tokens, prev)
	}
	s.tokens[t.Value] = t
	s.slots[k] = t.Value
	return nil
}

func (s *MemoryTokenStore) GetVerificationToken(ctx context.Context, value string) (VerificationToken, error) {
	if err := ctx.Err(); err != nil {
		return VerificationToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[value]
	if !ok {
		return VerificationToken{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryTokenStore) DeleteVerificationToken(ctx context.Context, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[value]
	if !ok {
		return false, nil
	}
	delete(s.tokens, value)
	k := slot{email: t.Email, purpose: t.Purpose}
	if s.slots[k] == value {
		delete(s.slots, k)
	}
	return true, nil
}

func (s *MemoryTokenStore) SaveOneTimeCode(ctx context.Context, c OneTimeCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.codes[c.Email] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) GetOneTimeCode(ctx context.Context, email string) (OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return OneTimeCode{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[email]
	if !ok {
		return OneTimeCode{}, ErrNotFound
	}
	return c, nil
}

// DeleteOneTimeCode removes the code for email only if it still equals code,
// so a code replaced by a newer issue is never consumed by the old value.
func (s *MemoryTokenStore) DeleteOneTimeCode(ctx context.Context, email, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[email]
	if !ok || subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}
