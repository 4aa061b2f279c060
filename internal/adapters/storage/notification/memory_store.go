package notification

import (
	"context"
	"fmt"
	"sync"

	"vendordesk/internal/domain/errs"
	domain "vendordesk/internal/domain/notification"
)

// MemoryStore keeps mailboxes in process memory.
// INVARIANT: a published mailbox slice is never modified in place; writers
// build a new slice and swap it in, so a reader's snapshot is never torn.
type MemoryStore struct {
	mu        sync.RWMutex
	mailboxes map[domain.Scope][]domain.Notification // newest first
	scopeOf   map[string]domain.Scope
}

// NewMemoryStore creates an empty in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mailboxes: make(map[domain.Scope][]domain.Notification),
		scopeOf:   make(map[string]domain.Scope),
	}
}

// Append adds n to the head of its mailbox.
func (s *MemoryStore) Append(ctx context.Context, n domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopeOf[n.ID]; ok {
		return fmt.Errorf("append: notification %s already exists", n.ID)
	}
	old := s.mailboxes[n.Scope]
	next := make([]domain.Notification, 0, len(old)+1)
	next = append(next, n)
	next = append(next, old...)
	s.mailboxes[n.Scope] = next
	s.scopeOf[n.ID] = n.Scope
	return nil
}

// Get retrieves one notification.
func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Notification, error) {
	s.mu.RLock()
	scope, ok := s.scopeOf[id]
	box := s.mailboxes[scope]
	s.mu.RUnlock()
	if ok {
		for _, n := range box {
			if n.ID == id {
				return n, nil
			}
		}
	}
	return domain.Notification{}, fmt.Errorf("%w: notification %s", errs.ErrNotFound, id)
}

// List returns the mailbox, newest first.
func (s *MemoryStore) List(ctx context.Context, scope domain.Scope) ([]domain.Notification, error) {
	box := s.snapshot(scope)
	out := make([]domain.Notification, len(box))
	copy(out, box)
	return out, nil
}

// UnreadCount counts mailbox entries not yet read.
func (s *MemoryStore) UnreadCount(ctx context.Context, scope domain.Scope) (int, error) {
	count := 0
	for _, n := range s.snapshot(scope) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flips one notification to read.
func (s *MemoryStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope, ok := s.scopeOf[id]
	if !ok {
		return nil
	}
	old := s.mailboxes[scope]
	for i, n := range old {
		if n.ID != id {
			continue
		}
		if n.Read {
			return nil
		}
		next := make([]domain.Notification, len(old))
		copy(next, old)
		next[i].MarkRead()
		s.mailboxes[scope] = next
		return nil
	}
	return nil
}

// Clear empties the mailbox.
func (s *MemoryStore) Clear(ctx context.Context, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.mailboxes[scope] {
		delete(s.scopeOf, n.ID)
	}
	delete(s.mailboxes, scope)
	return nil
}

// snapshot returns the published slice; callers must not modify it.
func (s *MemoryStore) snapshot(scope domain.Scope) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mailboxes[scope]
}
