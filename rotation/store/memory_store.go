package store

import (
	"context"
	"sync"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// MemoryStore holds rotation schedules and wrapped group keys in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[string]types.RotationSchedule

	wrappedMu sync.RWMutex
	wrapped   map[string]wrappedEntry
}

type wrappedEntry struct {
	blob    *wrapping.BlobInfo
	version int
}

// NewMemoryStore creates an in-memory rotation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[string]types.RotationSchedule),
		wrapped:   make(map[string]wrappedEntry),
	}
}

var (
	_ interfaces.ScheduleStore   = (*MemoryStore)(nil)
	_ interfaces.WrappedKeyStore = (*MemoryStore)(nil)
)

// GetSchedule returns the schedule for a group.
func (s *MemoryStore) GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[groupID]
	if !ok {
		return nil, types.ErrScheduleNotFound
	}
	cp := schedule
	return &cp, nil
}

// StoreSchedule inserts or replaces the group's schedule.
func (s *MemoryStore) StoreSchedule(ctx context.Context, schedule *types.RotationSchedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.GroupID] = *schedule
	return nil
}

// DeleteSchedule removes the group's schedule.
func (s *MemoryStore) DeleteSchedule(ctx context.Context, groupID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, groupID)
	return nil
}

// StoreWrappedKey persists the KMS-wrapped key for the group's epoch.
func (s *MemoryStore) StoreWrappedKey(ctx context.Context, groupID string, version int, blob *wrapping.BlobInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.wrappedMu.Lock()
	defer s.wrappedMu.Unlock()
	s.wrapped[groupID] = wrappedEntry{blob: blob, version: version}
	return nil
}

// GetWrappedKey returns the latest wrapped key and its version.
func (s *MemoryStore) GetWrappedKey(ctx context.Context, groupID string) (*wrapping.BlobInfo, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.wrappedMu.RLock()
	defer s.wrappedMu.RUnlock()

	entry, ok := s.wrapped[groupID]
	if !ok {
		return nil, 0, types.ErrWrappedKeyNotFound
	}
	return entry.blob, entry.version, nil
}
