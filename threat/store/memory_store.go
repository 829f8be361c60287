package store

import (
	"context"
	"sync"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// MemoryStore is an in-memory threat event store. Events are held newest
// first.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*types.ThreatEvent
	byID   map[string]*types.ThreatEvent
}

// NewMemoryStore creates an in-memory threat store.
func NewMemoryStore() interfaces.ThreatStore {
	return &MemoryStore{
		byID: make(map[string]*types.ThreatEvent),
	}
}

// Append stores a new threat event.
func (s *MemoryStore) Append(ctx context.Context, event *types.ThreatEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneEvent(event)
	s.events = append([]*types.ThreatEvent{cp}, s.events...)
	s.byID[cp.ID] = cp
	return nil
}

// Get returns the stored event with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.ThreatEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, types.ErrThreatNotFound
	}
	return cloneEvent(e), nil
}

// Update replaces the stored event with the same ID.
func (s *MemoryStore) Update(ctx context.Context, event *types.ThreatEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[event.ID]
	if !ok {
		return types.ErrThreatNotFound
	}
	*stored = *cloneEvent(event)
	return nil
}

// Query returns matching events newest first.
func (s *MemoryStore) Query(ctx context.Context, filter types.ThreatFilter) ([]*types.ThreatEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.ThreatEvent, 0)
	for _, e := range s.events {
		if filter.Matches(e) {
			results = append(results, cloneEvent(e))
		}
	}
	return results, nil
}

func cloneEvent(e *types.ThreatEvent) *types.ThreatEvent {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	if e.MitigationSteps != nil {
		cp.MitigationSteps = append([]string(nil), e.MitigationSteps...)
	}
	return &cp
}
