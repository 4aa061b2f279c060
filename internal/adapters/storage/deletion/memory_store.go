package deletion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "vendordesk/internal/domain/deletion"
	"vendordesk/internal/domain/errs"
)

// MemoryStore keeps deletion requests in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	requests []domain.Request // insertion order
	byID     map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Insert persists a new pending request.
// PRE: r is valid and pending
// POST: r is stored, or ErrDuplicatePending if the client already has a pending request
func (s *MemoryStore) Insert(ctx context.Context, r domain.Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !r.IsPending() {
		return fmt.Errorf("insert: request %s is %s, want pending", r.ID, r.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("insert: request %s already exists", r.ID)
	}
	for _, existing := range s.requests {
		if existing.ClientID == r.ClientID && existing.IsPending() {
			return ErrDuplicatePending
		}
	}
	s.byID[r.ID] = len(s.requests)
	s.requests = append(s.requests, copyRequest(r))
	return nil
}

// GetByID retrieves a deletion request by its ID.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Request{}, fmt.Errorf("%w: deletion request %s", errs.ErrNotFound, id)
	}
	return copyRequest(s.requests[i]), nil
}

// Transition atomically moves a request along a legal edge.
// INVARIANT: the check and the write happen under one lock
func (s *MemoryStore) Transition(ctx context.Context, in TransitionInput) (domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[in.ID]
	if !ok {
		return domain.Request{}, fmt.Errorf("%w: deletion request %s", errs.ErrNotFound, in.ID)
	}
	r := copyRequest(s.requests[i])
	if err := r.Transition(in.To, in.By, in.Response, in.At); err != nil {
		return domain.Request{}, err
	}
	s.requests[i] = r
	return copyRequest(r), nil
}

// List returns requests matching the filter, newest first.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Request
	for i := len(s.requests) - 1; i >= 0; i-- {
		if filter.matches(s.requests[i]) {
			out = append(out, copyRequest(s.requests[i]))
		}
	}
	// Reverse insertion order already breaks ties.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// copyRequest detaches the ProcessedAt pointer from stored state.
func copyRequest(r domain.Request) domain.Request {
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		r.ProcessedAt = &t
	}
	return r
}
