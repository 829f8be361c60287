package store

import (
	"context"
	"sync"
	"time"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// MemoryStore is a bounded in-memory audit store. Events are held newest
// first; appends beyond the cap evict the oldest entries.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []*types.AuditEvent
	maxSize int
}

// NewMemoryStore creates a bounded in-memory audit store. A maxSize of
// zero or less falls back to the default cap.
func NewMemoryStore(maxSize int) interfaces.AuditStore {
	if maxSize <= 0 {
		maxSize = types.DefaultMaxAuditEvents
	}
	return &MemoryStore{
		events:  make([]*types.AuditEvent, 0, 64),
		maxSize: maxSize,
	}
}

// Append stores the event at the head of the log. When the cap is reached
// the oldest events are dropped.
func (s *MemoryStore) Append(ctx context.Context, event *types.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append([]*types.AuditEvent{event}, s.events...)
	if len(s.events) > s.maxSize {
		s.events = s.events[:s.maxSize]
	}
	return nil
}

// Query returns matching events newest first, up to filter.Limit.
func (s *MemoryStore) Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.AuditEvent, 0)
	for _, e := range s.events {
		if !filter.Matches(e) {
			continue
		}
		results = append(results, e)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

// Purge removes events older than the given instant.
func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Len reports the number of retained events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
