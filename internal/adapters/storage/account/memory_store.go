package account

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	domain "vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
)

// MemoryStore keeps accounts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	statuses map[string]domain.StatusRecord
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]domain.Account),
		statuses: make(map[string]domain.StatusRecord),
	}
}

// Save inserts or updates a directory account.
func (s *MemoryStore) Save(ctx context.Context, a domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.accounts {
		if id != a.ID && strings.EqualFold(other.Email, a.Email) {
			return fmt.Errorf("save account: email %s already in use", a.Email)
		}
	}
	s.accounts[a.ID] = a
	return nil
}

// GetByID retrieves an account.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: account %s", errs.ErrNotFound, id)
	}
	return a, nil
}

// GetByEmail retrieves an account by email.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domain.Account{}, fmt.Errorf("%w: account %s", errs.ErrNotFound, email)
}

// List returns accounts ordered by creation time.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	s.mu.RLock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.Role == "" || a.Role == filter.Role {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetStatus returns the stored status flag of an account.
func (s *MemoryStore) GetStatus(ctx context.Context, clientID string) (domain.StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[clientID]; !ok {
		return domain.StatusRecord{}, fmt.Errorf("%w: account %s", errs.ErrNotFound, clientID)
	}
	if rec, ok := s.statuses[clientID]; ok {
		return rec, nil
	}
	return domain.StatusRecord{ClientID: clientID, Status: domain.StatusActive}, nil
}

// SetStatus writes the status flag of an existing account.
func (s *MemoryStore) SetStatus(ctx context.Context, rec domain.StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[rec.ClientID]; !ok {
		return fmt.Errorf("%w: account %s", errs.ErrNotFound, rec.ClientID)
	}
	s.statuses[rec.ClientID] = rec
	return nil
}

// DeleteIdentity removes the account and its status flag.
func (s *MemoryStore) DeleteIdentity(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[clientID]; !ok {
		return fmt.Errorf("%w: account %s", errs.ErrNotFound, clientID)
	}
	delete(s.accounts, clientID)
	delete(s.statuses, clientID)
	return nil
}
