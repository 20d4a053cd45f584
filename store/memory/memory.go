// Package memory is a process-local AccountStore for tests, demos and
// single-instance deployments. Data does not survive a restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/google/uuid"
)

type Store struct {
	mu      sync.RWMutex
	byID    map[string]stepAuth.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		byID:    make(map[string]stepAuth.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

var _ stepAuth.AccountStore = (*Store)(nil)

func (s *Store) GetAccountByEmail(_ context.Context, email string) (stepAuth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return stepAuth.Account{}, stepAuth.ErrNotFound
	}
	return copyAccount(s.byID[id]), nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (stepAuth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return stepAuth.Account{}, stepAuth.ErrNotFound
	}
	return copyAccount(acct), nil
}

// CreateAccount assigns a UUID and rejects emails that differ from an
// existing one only by case.
func (s *Store) CreateAccount(_ context.Context, in stepAuth.NewAccount) (stepAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(in.Email)
	if key == "" {
		return stepAuth.Account{}, stepAuth.ErrInvalidEmail
	}
	if _, exists := s.byEmail[key]; exists {
		return stepAuth.Account{}, stepAuth.ErrAccountExists
	}

	acct := stepAuth.Account{
		ID:           uuid.NewString(),
		Email:        key,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	if acct.Role == "" {
		acct.Role = stepAuth.RoleUser
	}
	s.byID[acct.ID] = acct
	s.byEmail[key] = acct.ID
	return acct, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) (stepAuth.Account, error) {
	return s.update(id, func(a *stepAuth.Account) { a.PasswordHash = hash })
}

func (s *Store) MarkEmailVerified(_ context.Context, id string, at time.Time) (stepAuth.Account, error) {
	at = at.UTC()
	return s.update(id, func(a *stepAuth.Account) { a.EmailVerifiedAt = &at })
}

func (s *Store) SetRole(_ context.Context, id string, role stepAuth.Role) (stepAuth.Account, error) {
	return s.update(id, func(a *stepAuth.Account) { a.Role = role })
}

func (s *Store) SetSuspended(_ context.Context, id string, suspended bool) (stepAuth.Account, error) {
	return s.update(id, func(a *stepAuth.Account) { a.Suspended = suspended })
}

func (s *Store) IncrementSessionVersion(_ context.Context, id string) (stepAuth.Account, error) {
	return s.update(id, func(a *stepAuth.Account) { a.SessionVersion++ })
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) update(id string, fn func(*stepAuth.Account)) (stepAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return stepAuth.Account{}, stepAuth.ErrNotFound
	}
	fn(&acct)
	s.byID[id] = acct
	return copyAccount(acct), nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// copyAccount detaches the verified-at pointer from the stored record.
func copyAccount(a stepAuth.Account) stepAuth.Account {
	if a.EmailVerifiedAt != nil {
		t := *a.EmailVerifiedAt
		a.EmailVerifiedAt = &t
	}
	return a
}
