// Package threat implements sliding-window threat detection over login
// attempts, key rotations, cryptographic failures and behavioral events.
// Detected threats are persisted with a recommended mitigation list and
// stay active until an operator resolves them.
package threat

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

// suspiciousLoginFailures is how many recent failures make a subsequent
// successful login suspicious.
const suspiciousLoginFailures = 3

var mitigations = map[types.ThreatType][]string{
	types.ThreatBruteForce: {
		"Lock the account pending identity verification",
		"Require credential reset before next login",
		"Review source addresses of the failed attempts",
	},
	types.ThreatSuspiciousLogin: {
		"Verify the login with the account owner",
		"Require step-up authentication for the session",
	},
	types.ThreatRapidKeyRotation: {
		"Review rotation initiators for the group",
		"Suspend rotation privileges for the initiating member",
		"Check the group for unauthorized membership changes",
	},
	types.ThreatEncryptionFailure: {
		"Rotate the group key immediately",
		"Verify integrity of stored key material",
		"Audit recent access to the affected group",
	},
	types.ThreatAbnormalBehavior: {
		"Throttle the user's request rate",
		"Review the user's recent activity for automation patterns",
	},
}

type detector struct {
	store   interfaces.ThreatStore
	config  types.ThreatConfig
	zLogger zerolog.Logger

	// mu guards only the map lookups; each window synchronizes itself, so
	// counters for distinct subjects never contend.
	mu           sync.RWMutex
	failedLogins map[string]*slidingWindow
	rotations    map[string]*slidingWindow
	behavior     map[string]*slidingWindow

	now func() time.Time
}

// NewDetector creates a threat detector over the given store.
func NewDetector(store interfaces.ThreatStore, config types.ThreatConfig, opLogger zerolog.Logger) (interfaces.ThreatDetector, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required for NewDetector")
	}
	if config.FailedLoginThreshold <= 0 {
		config = types.DefaultThreatConfig()
	}
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}

	return &detector{
		store:        store,
		config:       config,
		zLogger:      opLogger.With().Str("component", "threat_detector").Logger(),
		failedLogins: make(map[string]*slidingWindow),
		rotations:    make(map[string]*slidingWindow),
		behavior:     make(map[string]*slidingWindow),
		now:          time.Now,
	}, nil
}

// AnalyzeLoginAttempt records a login attempt for the user. A failure that
// brings the user to the threshold raises a brute-force threat; a success
// right after a burst of failures raises a suspicious-login threat. The
// event fires exactly once per crossing so a flagged subject does not
// produce a new event on every further attempt.
func (d *detector) AnalyzeLoginAttempt(ctx context.Context, userID string, success bool, metadata map[string]string) (*types.ThreatEvent, error) {
	now := d.now().UTC()
	w := d.window(d.failedLogins, userID, d.config.FailedLoginWindow)

	if success {
		recentFailures := w.Drain(now)

		if recentFailures >= suspiciousLoginFailures {
			return d.raise(ctx, &types.ThreatEvent{
				Type:        types.ThreatSuspiciousLogin,
				Level:       types.ThreatLevelMedium,
				UserID:      userID,
				Description: fmt.Sprintf("successful login after %d recent failures", recentFailures),
				Metadata:    withCount(metadata, "recentFailures", recentFailures),
			})
		}
		return nil, nil
	}

	count := w.Add(now)

	d.zLogger.Debug().
		Str("userId", userID).
		Int("failureCount", count).
		Msg("Failed login recorded")

	if count != d.config.FailedLoginThreshold {
		return nil, nil
	}

	return d.raise(ctx, &types.ThreatEvent{
		Type:        types.ThreatBruteForce,
		Level:       types.ThreatLevelHigh,
		UserID:      userID,
		Description: fmt.Sprintf("%d failed login attempts within %s", count, d.config.FailedLoginWindow),
		Metadata:    withCount(metadata, "failureCount", count),
	})
}

// AnalyzeKeyRotation records a rotation against the group's window and
// raises a rapid-rotation threat at the threshold crossing.
func (d *detector) AnalyzeKeyRotation(ctx context.Context, groupID, initiatorID string) (*types.ThreatEvent, error) {
	now := d.now().UTC()
	count := d.window(d.rotations, groupID, d.config.RotationWindow).Add(now)

	if count != d.config.RotationThreshold {
		return nil, nil
	}

	return d.raise(ctx, &types.ThreatEvent{
		Type:        types.ThreatRapidKeyRotation,
		Level:       types.ThreatLevelHigh,
		UserID:      initiatorID,
		GroupID:     groupID,
		Description: fmt.Sprintf("%d key rotations within %s", count, d.config.RotationWindow),
		Metadata:    withCount(nil, "rotationCount", count),
	})
}

// AnalyzeEncryptionFailure raises a critical threat for every reported
// cryptographic failure. There is no threshold: a single authentication
// failure on stored ciphertext already indicates tampering or corruption.
func (d *detector) AnalyzeEncryptionFailure(ctx context.Context, userID, groupID, operation string, cause error) (*types.ThreatEvent, error) {
	metadata := map[string]string{
		"operation": operation,
	}
	if cause != nil {
		metadata["cause"] = cause.Error()
	}

	return d.raise(ctx, &types.ThreatEvent{
		Type:        types.ThreatEncryptionFailure,
		Level:       types.ThreatLevelCritical,
		UserID:      userID,
		GroupID:     groupID,
		Description: fmt.Sprintf("cryptographic failure during %s", operation),
		Metadata:    metadata,
	})
}

// RecordBehaviorEvent feeds the user's behavioral counter and raises an
// abnormal-behavior threat at the threshold crossing.
func (d *detector) RecordBehaviorEvent(ctx context.Context, userID, eventType string) (*types.ThreatEvent, error) {
	now := d.now().UTC()
	count := d.window(d.behavior, userID, d.config.BehaviorWindow).Add(now)

	if count != d.config.BehaviorThreshold {
		return nil, nil
	}

	return d.raise(ctx, &types.ThreatEvent{
		Type:        types.ThreatAbnormalBehavior,
		Level:       types.ThreatLevelMedium,
		UserID:      userID,
		Description: fmt.Sprintf("%d events within %s", count, d.config.BehaviorWindow),
		Metadata:    withCount(map[string]string{"lastEventType": eventType}, "eventCount", count),
	})
}

// window returns the subject's window from the given map, creating it on
// first use.
func (d *detector) window(m map[string]*slidingWindow, key string, span time.Duration) *slidingWindow {
	d.mu.RLock()
	w, ok := m[key]
	d.mu.RUnlock()
	if ok {
		return w
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok = m[key]; ok {
		return w
	}
	w = newSlidingWindow(span)
	m[key] = w
	return w
}

// raise completes the event with identity, status and mitigations, then
// persists it.
func (d *detector) raise(ctx context.Context, event *types.ThreatEvent) (*types.ThreatEvent, error) {
	event.ID = uuid.New().String()
	event.Status = types.ThreatStatusActive
	event.Timestamp = d.now().UTC()
	event.MitigationSteps = append([]string(nil), mitigations[event.Type]...)

	if err := d.store.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist threat event: %w", err)
	}

	d.zLogger.Warn().
		Str("threatId", event.ID).
		Str("type", string(event.Type)).
		Str("level", string(event.Level)).
		Str("userId", event.UserID).
		Str("groupId", event.GroupID).
		Msg("Threat detected")

	return event, nil
}

// QueryThreats returns stored threat events matching the filter.
func (d *detector) QueryThreats(ctx context.Context, filter types.ThreatFilter) ([]*types.ThreatEvent, error) {
	events, err := d.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return events, nil
}

// MarkThreatStatus transitions an active threat to mitigated or
// false-positive and records the operator.
func (d *detector) MarkThreatStatus(ctx context.Context, id string, status types.ThreatStatus, operator string) (*types.ThreatEvent, error) {
	if status != types.ThreatStatusMitigated && status != types.ThreatStatusFalsePositive {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}

	event, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status != types.ThreatStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrThreatNotActive, id, event.Status)
	}

	event.Status = status
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata["resolvedBy"] = operator
	event.Metadata["resolvedAt"] = d.now().UTC().Format(time.RFC3339)

	if err := d.store.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update threat event: %w", err)
	}

	d.zLogger.Info().
		Str("threatId", id).
		Str("status", string(status)).
		Str("operator", operator).
		Msg("Threat status changed")

	return event, nil
}

// HasActiveThreat reports whether any active threat references the user or
// the group. Empty arguments are ignored.
func (d *detector) HasActiveThreat(ctx context.Context, userID, groupID string) (bool, error) {
	if userID != "" {
		events, err := d.store.Query(ctx, types.ThreatFilter{Status: types.ThreatStatusActive, UserID: userID})
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		if len(events) > 0 {
			return true, nil
		}
	}
	if groupID != "" {
		events, err := d.store.Query(ctx, types.ThreatFilter{Status: types.ThreatStatusActive, GroupID: groupID})
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		if len(events) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func withCount(metadata map[string]string, key string, count int) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[key] = fmt.Sprintf("%d", count)
	return out
}
