package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

func seedEvent(id string, age time.Duration) *types.AuditEvent {
	return &types.AuditEvent{
		ID:        id,
		EventType: types.EventTypeLoginAttempt,
		Timestamp: time.Now().UTC().Add(-age),
		UserID:    "alice",
		Severity:  types.SeverityInfo,
		Status:    types.StatusSuccess,
	}
}

func TestAppendEvictsOldestPastCap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3).(*MemoryStore)

	for i := 0; i < 5; i++ {
		e := seedEvent(fmt.Sprintf("event-%d", i), time.Duration(5-i)*time.Minute)
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if s.Len() != 3 {
		t.Fatalf("expected cap of 3 events, got %d", s.Len())
	}

	got, err := s.Query(ctx, types.AuditFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got[0].ID != "event-4" {
		t.Errorf("expected newest event first, got %s", got[0].ID)
	}
	for _, e := range got {
		if e.ID == "event-0" || e.ID == "event-1" {
			t.Errorf("expected oldest events evicted, found %s", e.ID)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100)

	for i := 0; i < 10; i++ {
		if err := s.Append(ctx, seedEvent(fmt.Sprintf("event-%d", i), 0)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.Query(ctx, types.AuditFilter{Limit: 4})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("expected 4 events, got %d", len(got))
	}
}

func TestQueryTimeRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100)

	old := seedEvent("old", 3*time.Hour)
	recent := seedEvent("recent", time.Minute)
	for _, e := range []*types.AuditEvent{old, recent} {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.Query(ctx, types.AuditFilter{From: time.Now().UTC().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "recent" {
		t.Errorf("expected only the recent event, got %+v", got)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100).(*MemoryStore)

	if err := s.Append(ctx, seedEvent("stale", 2*time.Hour)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, seedEvent("fresh", time.Minute)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	removed, err := s.Purge(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 retained event, got %d", s.Len())
	}
}
