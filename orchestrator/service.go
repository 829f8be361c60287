// Package orchestrator binds rotation scheduling, threat detection and
// audit logging into one surface. It owns the escalation path from a
// detected threat to an emergency rotation, with a per-group cooldown so a
// rotation triggered by detection cannot re-trigger detection in a loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/group-chat-module-keylifecycle/crypto"
	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/rotation"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// systemInitiator is the synthetic member used for threat-triggered
// emergency rotations.
var systemInitiator = types.Member{ID: "system", Role: types.RoleAdmin}

type service struct {
	rotation interfaces.RotationService
	detector interfaces.ThreatDetector
	auditor  interfaces.AuditService
	roster   interfaces.RosterProvider
	cache    interfaces.KeyCache
	config   types.OrchestratorConfig
	zLogger  zerolog.Logger

	cooldownMu sync.Mutex
	cooldown   map[string]time.Time

	now func() time.Time
}

// NewService creates the orchestration layer. cache is optional and only
// used for shutdown.
func NewService(rotationSvc interfaces.RotationService, detector interfaces.ThreatDetector, auditor interfaces.AuditService, roster interfaces.RosterProvider, cache interfaces.KeyCache, config types.OrchestratorConfig, opLogger zerolog.Logger) (interfaces.Orchestrator, error) {
	if rotationSvc == nil {
		return nil, fmt.Errorf("rotation service is required for NewService")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector is required for NewService")
	}
	if auditor == nil {
		return nil, fmt.Errorf("auditor is required for NewService")
	}
	if roster == nil {
		return nil, fmt.Errorf("roster provider is required for NewService")
	}
	if config.EmergencyCooldown <= 0 {
		config.EmergencyCooldown = types.DefaultEmergencyCooldown
	}
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}

	return &service{
		rotation: rotationSvc,
		detector: detector,
		auditor:  auditor,
		roster:   roster,
		cache:    cache,
		config:   config,
		zLogger:  opLogger.With().Str("component", "orchestrator").Logger(),
		cooldown: make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Rotate runs a regular rotation for the group and records the outcome in
// the audit log. Audit or detection failures never fail a rotation that
// already landed.
func (s *service) Rotate(ctx context.Context, groupID string, initiator types.Member) (*types.RotationResult, error) {
	members, err := s.roster.GetMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group roster: %w", err)
	}

	result, err := s.rotation.Rotate(ctx, groupID, initiator, members)
	if err != nil {
		s.recordRotationFailure(ctx, groupID, initiator.ID, err)
		s.reportCryptoFailure(ctx, groupID, initiator.ID, "key_rotation", err)
		return nil, err
	}

	s.recordAudit(func() error {
		_, auditErr := s.auditor.LogKeyRotation(ctx, groupID, initiator.ID, true, rotationMetadata(result))
		return auditErr
	})
	s.feedRotationDetector(ctx, groupID, initiator.ID)

	return result, nil
}

// EmergencyRotate runs an emergency rotation: a critical audit event marks
// the start, the rotation itself runs the regular pipeline, and a
// follow-up event records how it resolved.
func (s *service) EmergencyRotate(ctx context.Context, groupID string, initiator types.Member, reason string) (*types.RotationResult, error) {
	s.recordAudit(func() error {
		_, auditErr := s.auditor.LogEmergencyRotation(ctx, groupID, initiator.ID, reason)
		return auditErr
	})

	members, err := s.roster.GetMembers(ctx, groupID)
	if err != nil {
		s.recordEmergencyOutcome(ctx, groupID, initiator.ID, reason, err)
		return nil, fmt.Errorf("failed to load group roster: %w", err)
	}

	result, err := s.rotation.EmergencyRotate(ctx, groupID, initiator, members, reason)
	s.recordEmergencyOutcome(ctx, groupID, initiator.ID, reason, err)
	if err != nil {
		s.reportCryptoFailure(ctx, groupID, initiator.ID, "emergency_rotation", err)
		return nil, err
	}

	s.feedRotationDetector(ctx, groupID, initiator.ID)
	return result, nil
}

// recordRotationFailure audits a failed or denied regular rotation. A
// denied attempt gets its own event type so authorization failures stand
// out from pipeline failures.
func (s *service) recordRotationFailure(ctx context.Context, groupID, initiatorID string, cause error) {
	if errors.Is(cause, rotation.ErrUnauthorizedRotation) {
		s.recordAudit(func() error {
			_, auditErr := s.auditor.Log(ctx, types.EventTypeKeyRotationDenied, initiatorID,
				map[string]string{"error": cause.Error()},
				types.SeverityWarning, types.StatusFailure, groupID)
			return auditErr
		})
		return
	}
	s.recordAudit(func() error {
		_, auditErr := s.auditor.LogKeyRotation(ctx, groupID, initiatorID, false,
			map[string]string{"error": cause.Error()})
		return auditErr
	})
}

// recordEmergencyOutcome writes the follow-up event resolving an emergency
// rotation. A failed emergency rotation is critical: the group is known
// compromised and still carries the old key.
func (s *service) recordEmergencyOutcome(ctx context.Context, groupID, initiatorID, reason string, cause error) {
	if cause == nil {
		s.recordAudit(func() error {
			_, auditErr := s.auditor.Log(ctx, types.EventTypeKeyRotationCompleted, initiatorID,
				map[string]string{"reason": reason, "emergency": "true"},
				types.SeverityInfo, types.StatusSuccess, groupID)
			return auditErr
		})
		return
	}
	s.recordAudit(func() error {
		_, auditErr := s.auditor.Log(ctx, types.EventTypeKeyRotationFailed, initiatorID,
			map[string]string{"reason": reason, "emergency": "true", "error": cause.Error()},
			types.SeverityCritical, types.StatusFailure, groupID)
		return auditErr
	})
}

// reportCryptoFailure feeds a cryptographic failure inside the rotation
// pipeline to the detector, raising a critical threat alongside the audit
// record. The escalation cooldown keeps a persistently failing group from
// attempting emergency rotations in a loop.
func (s *service) reportCryptoFailure(ctx context.Context, groupID, userID, operation string, cause error) {
	if !isCryptoFailure(cause) {
		return
	}
	threatEvent, err := s.detector.AnalyzeEncryptionFailure(ctx, userID, groupID, operation, cause)
	if err != nil {
		s.zLogger.Error().Err(err).Str("groupId", groupID).Msg("Encryption failure analysis failed")
		return
	}
	if threatEvent != nil {
		s.handleThreat(ctx, threatEvent)
	}
}

func isCryptoFailure(err error) bool {
	return errors.Is(err, crypto.ErrProviderUnavailable) ||
		errors.Is(err, crypto.ErrDecryptionFailed) ||
		errors.Is(err, crypto.ErrInvalidKeySize) ||
		errors.Is(err, crypto.ErrInvalidPublicKey) ||
		errors.Is(err, crypto.ErrInvalidPrivateKey)
}

// feedRotationDetector records the rotation for rapid-rotation detection
// and escalates if that crossed the threshold.
func (s *service) feedRotationDetector(ctx context.Context, groupID, initiatorID string) {
	threatEvent, err := s.detector.AnalyzeKeyRotation(ctx, groupID, initiatorID)
	if err != nil {
		s.zLogger.Error().Err(err).Str("groupId", groupID).Msg("Rotation threat analysis failed")
		return
	}
	if threatEvent != nil {
		s.handleThreat(ctx, threatEvent)
	}
}

// handleThreat audits a detected threat and, for severe group-scoped
// threats, escalates to an emergency rotation.
func (s *service) handleThreat(ctx context.Context, event *types.ThreatEvent) {
	s.recordAudit(func() error {
		severity := types.SeverityWarning
		if event.Level == types.ThreatLevelCritical {
			severity = types.SeverityCritical
		}
		_, auditErr := s.auditor.Log(ctx, types.EventTypeThreatDetected, event.UserID,
			map[string]string{
				"threatId":   event.ID,
				"threatType": string(event.Type),
				"level":      string(event.Level),
			},
			severity, types.StatusSuccess, event.GroupID)
		return auditErr
	})

	if event.GroupID == "" || event.Level.Rank() < types.ThreatLevelHigh.Rank() {
		return
	}
	s.escalate(ctx, event)
}

// escalate triggers a system-initiated emergency rotation for the
// threatened group, unless one fired recently.
func (s *service) escalate(ctx context.Context, event *types.ThreatEvent) {
	if !s.claimEscalation(event.GroupID) {
		s.zLogger.Info().
			Str("groupId", event.GroupID).
			Str("threatId", event.ID).
			Msg("Escalation suppressed by cooldown")
		return
	}

	s.zLogger.Warn().
		Str("groupId", event.GroupID).
		Str("threatId", event.ID).
		Str("threatType", string(event.Type)).
		Msg("Escalating threat to emergency rotation")

	reason := fmt.Sprintf("threat %s: %s", event.Type, event.Description)
	if _, err := s.EmergencyRotate(ctx, event.GroupID, systemInitiator, reason); err != nil {
		s.zLogger.Error().
			Err(err).
			Str("groupId", event.GroupID).
			Str("threatId", event.ID).
			Msg("Threat-triggered emergency rotation failed")
	}
}

// claimEscalation reports whether an escalation may fire for the group and
// starts the cooldown when it may.
func (s *service) claimEscalation(groupID string) bool {
	now := s.now().UTC()

	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	if last, ok := s.cooldown[groupID]; ok && now.Sub(last) < s.config.EmergencyCooldown {
		return false
	}
	s.cooldown[groupID] = now
	return true
}

// IsRotationNeeded reports whether the group is due for rotation.
func (s *service) IsRotationNeeded(ctx context.Context, groupID string) (bool, error) {
	return s.rotation.IsRotationNeeded(ctx, groupID)
}

// CanInitiate reports whether the member may start a rotation.
func (s *service) CanInitiate(member types.Member) bool {
	return s.rotation.CanInitiate(member)
}

// GetSchedule returns the group's rotation schedule.
func (s *service) GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error) {
	return s.rotation.GetSchedule(ctx, groupID)
}

// AnalyzeLoginAttempt feeds the detector and audits the attempt. A
// resulting threat is audited too but never escalates: login threats are
// user-scoped and resolved by operators.
func (s *service) AnalyzeLoginAttempt(ctx context.Context, userID string, success bool, metadata map[string]string) (*types.ThreatEvent, error) {
	threatEvent, err := s.detector.AnalyzeLoginAttempt(ctx, userID, success, metadata)
	if err != nil {
		return nil, err
	}

	status := types.StatusSuccess
	severity := types.SeverityInfo
	if !success {
		status = types.StatusFailure
		severity = types.SeverityWarning
	}
	s.recordAudit(func() error {
		_, auditErr := s.auditor.Log(ctx, types.EventTypeLoginAttempt, userID, metadata, severity, status, "")
		return auditErr
	})

	if threatEvent != nil {
		s.handleThreat(ctx, threatEvent)
	}
	return threatEvent, nil
}

// AnalyzeKeyRotation records an externally observed rotation for
// rapid-rotation detection.
func (s *service) AnalyzeKeyRotation(ctx context.Context, groupID, initiatorID string) (*types.ThreatEvent, error) {
	threatEvent, err := s.detector.AnalyzeKeyRotation(ctx, groupID, initiatorID)
	if err != nil {
		return nil, err
	}
	if threatEvent != nil {
		s.handleThreat(ctx, threatEvent)
	}
	return threatEvent, nil
}

// AnalyzeEncryptionFailure reports a cryptographic failure. Every call
// raises a critical threat; group-scoped failures escalate to an
// emergency rotation subject to the cooldown.
func (s *service) AnalyzeEncryptionFailure(ctx context.Context, userID, groupID, operation string, cause error) (*types.ThreatEvent, error) {
	threatEvent, err := s.detector.AnalyzeEncryptionFailure(ctx, userID, groupID, operation, cause)
	if err != nil {
		return nil, err
	}
	if threatEvent != nil {
		s.handleThreat(ctx, threatEvent)
	}
	return threatEvent, nil
}

// QueryThreats returns stored threat events matching the filter.
func (s *service) QueryThreats(ctx context.Context, filter types.ThreatFilter) ([]*types.ThreatEvent, error) {
	return s.detector.QueryThreats(ctx, filter)
}

// MarkThreatStatus resolves a threat and audits the transition.
func (s *service) MarkThreatStatus(ctx context.Context, id string, status types.ThreatStatus, operator string) (*types.ThreatEvent, error) {
	event, err := s.detector.MarkThreatStatus(ctx, id, status, operator)
	if err != nil {
		return nil, err
	}

	s.recordAudit(func() error {
		_, auditErr := s.auditor.Log(ctx, types.EventTypeThreatStatusChanged, operator,
			map[string]string{
				"threatId": id,
				"status":   string(status),
			},
			types.SeverityInfo, types.StatusSuccess, event.GroupID)
		return auditErr
	})

	return event, nil
}

// LogSecurityEvent appends an arbitrary security event to the audit log
// and feeds the behavioral detector. Threat bookkeeping events are not fed
// back into detection.
func (s *service) LogSecurityEvent(ctx context.Context, eventType, userID string, metadata map[string]string, severity types.Severity, status types.EventStatus, groupID string) (*types.AuditEvent, error) {
	event, err := s.auditor.Log(ctx, eventType, userID, metadata, severity, status, groupID)
	if err != nil {
		return nil, err
	}

	if userID != "" && !strings.HasPrefix(eventType, "threat.") {
		threatEvent, detectErr := s.detector.RecordBehaviorEvent(ctx, userID, eventType)
		if detectErr != nil {
			s.zLogger.Error().Err(detectErr).Str("userId", userID).Msg("Behavior analysis failed")
		} else if threatEvent != nil {
			s.handleThreat(ctx, threatEvent)
		}
	}

	return event, nil
}

// QueryEvents returns stored audit events matching the filter.
func (s *service) QueryEvents(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error) {
	return s.auditor.Query(ctx, filter)
}

// Shutdown stops the background workers of the owned collaborators.
func (s *service) Shutdown(ctx context.Context) error {
	if err := s.auditor.Close(); err != nil {
		return fmt.Errorf("failed to close audit service: %w", err)
	}
	if closer, ok := s.cache.(interface{ Close() }); ok {
		closer.Close()
	}
	s.zLogger.Debug().Msg("Orchestrator shut down")
	return nil
}

// recordAudit runs a best-effort audit write. Failures are logged and
// never propagate to the caller's operation.
func (s *service) recordAudit(write func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.zLogger.Error().Interface("panic", r).Msg("Audit write panicked")
		}
	}()
	if err := write(); err != nil {
		s.zLogger.Error().Err(err).Msg("Audit write failed")
	}
}

func rotationMetadata(result *types.RotationResult) map[string]string {
	metadata := map[string]string{
		"version":     strconv.Itoa(result.Schedule.Version),
		"bundleCount": strconv.Itoa(len(result.Bundles)),
	}
	if len(result.Omitted) > 0 {
		metadata["omitted"] = strings.Join(result.Omitted, ",")
	}
	return metadata
}
