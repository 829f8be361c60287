package threat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/root-sector/group-chat-module-keylifecycle/threat/store"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

func newTestDetector(t *testing.T) (*detector, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d, err := NewDetector(store.NewMemoryStore(), types.DefaultThreatConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	det := d.(*detector)
	det.now = clock.Now
	return det, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBruteForceDetection(t *testing.T) {
	ctx := context.Background()
	d, clock := newTestDetector(t)

	// Four failures stay below the threshold.
	for i := 0; i < 4; i++ {
		event, err := d.AnalyzeLoginAttempt(ctx, "alice", false, nil)
		if err != nil {
			t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
		}
		if event != nil {
			t.Fatalf("unexpected threat after %d failures", i+1)
		}
		clock.Advance(10 * time.Second)
	}

	// The fifth failure crosses the threshold.
	event, err := d.AnalyzeLoginAttempt(ctx, "alice", false, map[string]string{"ip": "10.0.0.9"})
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
	}
	if event == nil {
		t.Fatal("expected brute-force threat at threshold")
	}
	if event.Type != types.ThreatBruteForce || event.Level != types.ThreatLevelHigh {
		t.Errorf("unexpected event: %s/%s", event.Type, event.Level)
	}
	if event.Status != types.ThreatStatusActive {
		t.Errorf("expected active status, got %s", event.Status)
	}
	if len(event.MitigationSteps) == 0 {
		t.Error("expected mitigation steps")
	}

	// Further failures do not raise duplicate events, but the subject
	// stays flagged through the stored active threat.
	clock.Advance(time.Second)
	again, err := d.AnalyzeLoginAttempt(ctx, "alice", false, nil)
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
	}
	if again != nil {
		t.Error("expected no duplicate event past the threshold")
	}
	flagged, err := d.HasActiveThreat(ctx, "alice", "")
	if err != nil {
		t.Fatalf("HasActiveThreat failed: %v", err)
	}
	if !flagged {
		t.Error("expected alice to stay flagged")
	}
}

func TestFailedLoginsOutsideWindowDoNotTrigger(t *testing.T) {
	ctx := context.Background()
	d, clock := newTestDetector(t)

	for i := 0; i < 4; i++ {
		if _, err := d.AnalyzeLoginAttempt(ctx, "alice", false, nil); err != nil {
			t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
		}
		clock.Advance(10 * time.Second)
	}

	// Let the earlier failures age out of the 5 minute window.
	clock.Advance(6 * time.Minute)

	event, err := d.AnalyzeLoginAttempt(ctx, "alice", false, nil)
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
	}
	if event != nil {
		t.Error("stale failures should not count toward the threshold")
	}
}

func TestSuspiciousLoginAfterFailures(t *testing.T) {
	ctx := context.Background()
	d, clock := newTestDetector(t)

	for i := 0; i < 3; i++ {
		if _, err := d.AnalyzeLoginAttempt(ctx, "alice", false, nil); err != nil {
			t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
		}
		clock.Advance(time.Second)
	}

	event, err := d.AnalyzeLoginAttempt(ctx, "alice", true, nil)
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
	}
	if event == nil || event.Type != types.ThreatSuspiciousLogin {
		t.Fatalf("expected suspicious-login threat, got %+v", event)
	}

	// The success reset the failure window.
	clock.Advance(time.Second)
	next, err := d.AnalyzeLoginAttempt(ctx, "alice", false, nil)
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
	}
	if next != nil {
		t.Error("expected failure counter to restart after success")
	}
}

func TestCleanLoginIsQuiet(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDetector(t)

	event, err := d.AnalyzeLoginAttempt(ctx, "alice", true, nil)
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt failed: %v", err)
	}
	if event != nil {
		t.Error("clean success should not raise a threat")
	}
}

func TestRapidRotationDetection(t *testing.T) {
	ctx := context.Background()
	d, clock := newTestDetector(t)

	for i := 0; i < 2; i++ {
		event, err := d.AnalyzeKeyRotation(ctx, "group-1", "admin")
		if err != nil {
			t.Fatalf("AnalyzeKeyRotation failed: %v", err)
		}
		if event != nil {
			t.Fatalf("unexpected threat after %d rotations", i+1)
		}
		clock.Advance(time.Minute)
	}

	event, err := d.AnalyzeKeyRotation(ctx, "group-1", "admin")
	if err != nil {
		t.Fatalf("AnalyzeKeyRotation failed: %v", err)
	}
	if event == nil || event.Type != types.ThreatRapidKeyRotation {
		t.Fatalf("expected rapid-rotation threat, got %+v", event)
	}
	if event.GroupID != "group-1" || event.UserID != "admin" {
		t.Errorf("unexpected subject: user=%s group=%s", event.UserID, event.GroupID)
	}

	// Rotations of a different group count separately.
	other, err := d.AnalyzeKeyRotation(ctx, "group-2", "admin")
	if err != nil {
		t.Fatalf("AnalyzeKeyRotation failed: %v", err)
	}
	if other != nil {
		t.Error("expected independent window per group")
	}
}

func TestEncryptionFailureAlwaysCritical(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDetector(t)

	event, err := d.AnalyzeEncryptionFailure(ctx, "alice", "group-1", "decrypt", errors.New("authentication tag mismatch"))
	if err != nil {
		t.Fatalf("AnalyzeEncryptionFailure failed: %v", err)
	}
	if event == nil {
		t.Fatal("expected a threat for every encryption failure")
	}
	if event.Type != types.ThreatEncryptionFailure || event.Level != types.ThreatLevelCritical {
		t.Errorf("unexpected event: %s/%s", event.Type, event.Level)
	}
	if event.Metadata["cause"] == "" {
		t.Error("expected cause in metadata")
	}
}

func TestBehaviorThreshold(t *testing.T) {
	ctx := context.Background()
	d, clock := newTestDetector(t)

	var event *types.ThreatEvent
	var err error
	for i := 0; i < types.DefaultBehaviorThreshold; i++ {
		event, err = d.RecordBehaviorEvent(ctx, "alice", "message.send")
		if err != nil {
			t.Fatalf("RecordBehaviorEvent failed: %v", err)
		}
		if i < types.DefaultBehaviorThreshold-1 && event != nil {
			t.Fatalf("unexpected threat after %d events", i+1)
		}
		clock.Advance(time.Second)
	}
	if event == nil || event.Type != types.ThreatAbnormalBehavior {
		t.Fatalf("expected abnormal-behavior threat at threshold, got %+v", event)
	}
}

func TestMarkThreatStatus(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDetector(t)

	raised, err := d.AnalyzeEncryptionFailure(ctx, "alice", "group-1", "decrypt", nil)
	if err != nil {
		t.Fatalf("AnalyzeEncryptionFailure failed: %v", err)
	}

	resolved, err := d.MarkThreatStatus(ctx, raised.ID, types.ThreatStatusMitigated, "operator-1")
	if err != nil {
		t.Fatalf("MarkThreatStatus failed: %v", err)
	}
	if resolved.Status != types.ThreatStatusMitigated {
		t.Errorf("expected mitigated status, got %s", resolved.Status)
	}
	if resolved.Metadata["resolvedBy"] != "operator-1" {
		t.Error("expected operator recorded in metadata")
	}

	// Resolving again fails: the threat is no longer active.
	if _, err := d.MarkThreatStatus(ctx, raised.ID, types.ThreatStatusFalsePositive, "operator-2"); !errors.Is(err, ErrThreatNotActive) {
		t.Errorf("expected ErrThreatNotActive, got %v", err)
	}

	// The subject is no longer flagged.
	flagged, err := d.HasActiveThreat(ctx, "alice", "group-1")
	if err != nil {
		t.Fatalf("HasActiveThreat failed: %v", err)
	}
	if flagged {
		t.Error("expected no active threat after mitigation")
	}
}

func TestMarkThreatStatusValidation(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDetector(t)

	if _, err := d.MarkThreatStatus(ctx, "missing", types.ThreatStatusMitigated, "op"); !errors.Is(err, types.ErrThreatNotFound) {
		t.Errorf("expected ErrThreatNotFound, got %v", err)
	}
	if _, err := d.MarkThreatStatus(ctx, "whatever", types.ThreatStatusActive, "op"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus for transition to active, got %v", err)
	}
}

func TestQueryThreatsFilters(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDetector(t)

	for i := 0; i < 3; i++ {
		if _, err := d.AnalyzeEncryptionFailure(ctx, fmt.Sprintf("user-%d", i), "group-1", "decrypt", nil); err != nil {
			t.Fatalf("AnalyzeEncryptionFailure failed: %v", err)
		}
	}

	all, err := d.QueryThreats(ctx, types.ThreatFilter{GroupID: "group-1"})
	if err != nil {
		t.Fatalf("QueryThreats failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 threats, got %d", len(all))
	}

	one, err := d.QueryThreats(ctx, types.ThreatFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("QueryThreats failed: %v", err)
	}
	if len(one) != 1 || one[0].UserID != "user-1" {
		t.Errorf("unexpected filter result: %+v", one)
	}
}

func TestConcurrentSubjectsIndependent(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDetector(t)

	// Each subject accumulates failures on its own counter; concurrent
	// subjects must neither share counts nor lose updates.
	const users = 8
	var wg sync.WaitGroup
	errs := make([]error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n)
			for j := 0; j < types.DefaultFailedLoginThreshold; j++ {
				if _, err := d.AnalyzeLoginAttempt(ctx, userID, false, nil); err != nil {
					errs[n] = err
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("AnalyzeLoginAttempt failed for user-%d: %v", i, err)
		}
	}

	threats, err := d.QueryThreats(ctx, types.ThreatFilter{Type: types.ThreatBruteForce})
	if err != nil {
		t.Fatalf("QueryThreats failed: %v", err)
	}
	if len(threats) != users {
		t.Fatalf("expected one threat per subject, got %d", len(threats))
	}
	seen := make(map[string]bool, users)
	for _, event := range threats {
		if seen[event.UserID] {
			t.Errorf("duplicate threat for %s", event.UserID)
		}
		seen[event.UserID] = true
	}
}
