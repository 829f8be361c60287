// Package audit provides the bounded, retained audit log for key lifecycle
// operations. Every rotation attempt, threat detection and status change
// flows through here; critical events are additionally dispatched to the
// configured alert sink.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

type service struct {
	store     interfaces.AuditStore
	alertSink interfaces.AlertSink
	config    types.AuditConfig
	zLogger   zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewService creates an audit service over the given store and starts the
// background retention sweeper. alertSink may be nil.
func NewService(store interfaces.AuditStore, alertSink interfaces.AlertSink, config types.AuditConfig, opLogger zerolog.Logger) (interfaces.AuditService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required for NewService")
	}
	if config.RetentionPeriod <= 0 {
		config.RetentionPeriod = types.DefaultAuditRetention
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = types.DefaultSweepInterval
	}
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}

	s := &service{
		store:     store,
		alertSink: alertSink,
		config:    config,
		zLogger:   opLogger.With().Str("component", "audit").Logger(),
		done:      make(chan struct{}),
	}

	go s.startSweepRoutine()

	s.zLogger.Debug().
		Dur("retention", config.RetentionPeriod).
		Dur("sweepInterval", config.SweepInterval).
		Msg("Audit service initialized")

	return s, nil
}

func (s *service) startSweepRoutine() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(context.Background()); err != nil {
				s.zLogger.Error().Err(err).Msg("Retention sweep failed")
			}
		case <-s.done:
			return
		}
	}
}

// Log appends an audit event. Critical events additionally trigger the
// alert sink; sink failures never affect the append.
func (s *service) Log(ctx context.Context, eventType, userID string, metadata map[string]string, severity types.Severity, status types.EventStatus, groupID string) (*types.AuditEvent, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.mu.Unlock()

	event := &types.AuditEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		GroupID:   groupID,
		Severity:  severity,
		Status:    status,
		Metadata:  metadata,
	}

	if err := s.store.Append(ctx, event); err != nil {
		s.zLogger.Error().
			Err(err).
			Str("eventType", eventType).
			Str("userId", userID).
			Msg("Failed to persist audit event")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.zLogger.Debug().
		Str("auditId", event.ID).
		Str("eventType", eventType).
		Str("userId", userID).
		Str("groupId", groupID).
		Str("severity", string(severity)).
		Str("status", string(status)).
		Msg("Audit event recorded")

	if severity == types.SeverityCritical {
		s.dispatchAlert(ctx, event)
	}

	return event, nil
}

// dispatchAlert notifies the alert sink about a critical event. A panicking
// or misbehaving sink must never take the audit path down.
func (s *service) dispatchAlert(ctx context.Context, event *types.AuditEvent) {
	if s.alertSink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.zLogger.Error().
				Interface("panic", r).
				Str("auditId", event.ID).
				Msg("Alert sink panicked")
		}
	}()
	s.alertSink.Alert(ctx, event)
}

// Query returns stored events matching the filter, newest first.
func (s *service) Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error) {
	events, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	return events, nil
}

// LogKeyRotation records the outcome of a rotation attempt.
func (s *service) LogKeyRotation(ctx context.Context, groupID, userID string, success bool, metadata map[string]string) (*types.AuditEvent, error) {
	eventType := types.EventTypeKeyRotationCompleted
	severity := types.SeverityInfo
	status := types.StatusSuccess
	if !success {
		eventType = types.EventTypeKeyRotationFailed
		severity = types.SeverityWarning
		status = types.StatusFailure
	}
	return s.Log(ctx, eventType, userID, metadata, severity, status, groupID)
}

// LogEmergencyRotation records the start of an emergency rotation. The
// event is critical regardless of how the rotation later resolves; callers
// log a follow-up event with the outcome.
func (s *service) LogEmergencyRotation(ctx context.Context, groupID, userID, reason string) (*types.AuditEvent, error) {
	metadata := map[string]string{
		"reason": reason,
	}
	return s.Log(ctx, types.EventTypeEmergencyRotation, userID, metadata, types.SeverityCritical, types.StatusInProgress, groupID)
}

// Sweep removes events past the retention period and returns the count.
func (s *service) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.config.RetentionPeriod)
	removed, err := s.store.Purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired audit events: %w", err)
	}
	if removed > 0 {
		s.zLogger.Debug().
			Int("removedCount", removed).
			Str("cutoff", cutoff.Format(time.RFC3339)).
			Msg("Expired audit events purged")
	}
	return removed, nil
}

// Close stops the background retention sweeper.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}
