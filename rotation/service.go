// Package rotation owns per-group key rotation: schedule bookkeeping,
// authorization, mutual exclusion, and the rotate pipeline of fresh key
// material, per-member bundles and schedule advancement. Emergency
// rotations run the same cryptographic path as scheduled ones and differ
// only in trigger and audit treatment.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/group-chat-module-keylifecycle/bundle"
	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/keycache"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

type service struct {
	agreement   interfaces.KeyAgreement
	distributor interfaces.BundleDistributor
	schedules   interfaces.ScheduleStore
	cache       interfaces.KeyCache
	kmsProvider interfaces.KMSProvider
	wrappedKeys interfaces.WrappedKeyStore
	config      types.RotationConfig
	zLogger     zerolog.Logger

	// rotating tracks in-flight rotations per group; at most one rotation
	// per group may run at a time.
	mu       sync.Mutex
	rotating map[string]bool

	// current holds the active epoch key per group so the superseded key
	// can be retained in the cache when a rotation lands.
	keysMu  sync.RWMutex
	current map[string]*types.GroupSharedKey
}

// Options carries the optional collaborators of the rotation service.
type Options struct {
	// Cache retains superseded epoch keys for in-flight decryption.
	Cache interfaces.KeyCache

	// KMSProvider and WrappedKeys together persist a KMS-wrapped copy of
	// each new group key. Both must be set for wrapping to happen; wrap
	// failures are logged and never fail the rotation.
	KMSProvider interfaces.KMSProvider
	WrappedKeys interfaces.WrappedKeyStore
}

// NewService creates a rotation service.
func NewService(agreement interfaces.KeyAgreement, distributor interfaces.BundleDistributor, schedules interfaces.ScheduleStore, config types.RotationConfig, opts Options, opLogger zerolog.Logger) (interfaces.RotationService, error) {
	if agreement == nil {
		return nil, fmt.Errorf("agreement is required for NewService")
	}
	if distributor == nil {
		return nil, fmt.Errorf("distributor is required for NewService")
	}
	if schedules == nil {
		return nil, fmt.Errorf("schedules store is required for NewService")
	}
	if config.Interval <= 0 {
		config.Interval = types.DefaultRotationInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = types.DefaultRotationTimeout
	}
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}

	return &service{
		agreement:   agreement,
		distributor: distributor,
		schedules:   schedules,
		cache:       opts.Cache,
		kmsProvider: opts.KMSProvider,
		wrappedKeys: opts.WrappedKeys,
		config:      config,
		zLogger:     opLogger.With().Str("component", "rotation").Logger(),
		rotating:    make(map[string]bool),
		current:     make(map[string]*types.GroupSharedKey),
	}, nil
}

// IsRotationNeeded reports whether the group is due for rotation. A group
// that never rotated is always due.
func (s *service) IsRotationNeeded(ctx context.Context, groupID string) (bool, error) {
	schedule, err := s.schedules.GetSchedule(ctx, groupID)
	if err != nil {
		if errors.Is(err, types.ErrScheduleNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to load rotation schedule: %w", err)
	}
	return schedule.Due(time.Now().UTC()), nil
}

// CanInitiate reports whether the member may start a rotation.
func (s *service) CanInitiate(member types.Member) bool {
	return member.Role.CanInitiateRotation()
}

// GetSchedule returns the group's schedule, or types.ErrScheduleNotFound.
func (s *service) GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error) {
	return s.schedules.GetSchedule(ctx, groupID)
}

// Rotate executes a rotation for the group. Authorization is checked
// first, then the group's rotation slot is claimed; a concurrent attempt
// fails fast with ErrRotationInProgress. The version advances only when
// the whole pipeline lands.
func (s *service) Rotate(ctx context.Context, groupID string, initiator types.Member, members []types.Member) (*types.RotationResult, error) {
	return s.rotate(ctx, groupID, initiator, members, false, "")
}

// EmergencyRotate runs the same pipeline regardless of schedule state.
func (s *service) EmergencyRotate(ctx context.Context, groupID string, initiator types.Member, members []types.Member, reason string) (*types.RotationResult, error) {
	return s.rotate(ctx, groupID, initiator, members, true, reason)
}

func (s *service) rotate(ctx context.Context, groupID string, initiator types.Member, members []types.Member, emergency bool, reason string) (*types.RotationResult, error) {
	if !s.CanInitiate(initiator) {
		s.zLogger.Warn().
			Str("groupId", groupID).
			Str("initiatorId", initiator.ID).
			Str("role", string(initiator.Role)).
			Msg("Rotation denied: insufficient role")
		return nil, fmt.Errorf("%w: member %s has role %s", ErrUnauthorizedRotation, initiator.ID, initiator.Role)
	}
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	if err := s.beginRotation(groupID); err != nil {
		return nil, err
	}
	defer s.endRotation(groupID)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	logEvent := s.zLogger.Info().
		Str("groupId", groupID).
		Str("initiatorId", initiator.ID).
		Int("memberCount", len(members)).
		Bool("emergency", emergency)
	if reason != "" {
		logEvent = logEvent.Str("reason", reason)
	}
	logEvent.Msg("Rotation started")

	result, err := s.executeRotation(ctx, groupID, members)
	if err != nil {
		s.zLogger.Error().
			Err(err).
			Str("groupId", groupID).
			Bool("emergency", emergency).
			Msg("Rotation failed")
		return nil, err
	}

	s.zLogger.Info().
		Str("groupId", groupID).
		Int("version", result.Schedule.Version).
		Int("bundleCount", len(result.Bundles)).
		Int("omittedCount", len(result.Omitted)).
		Bool("emergency", emergency).
		Msg("Rotation completed")

	return result, nil
}

// beginRotation claims the group's rotation slot.
func (s *service) beginRotation(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rotating[groupID] {
		return fmt.Errorf("%w: %s", ErrRotationInProgress, groupID)
	}
	s.rotating[groupID] = true
	return nil
}

func (s *service) endRotation(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rotating, groupID)
}

// executeRotation runs the rotation pipeline: next version, fresh key,
// per-member bundles, schedule advance, then key handover. Any failure
// before the schedule is stored leaves the previous epoch fully intact.
func (s *service) executeRotation(ctx context.Context, groupID string, members []types.Member) (*types.RotationResult, error) {
	version := 1
	schedule, err := s.schedules.GetSchedule(ctx, groupID)
	if err != nil && !errors.Is(err, types.ErrScheduleNotFound) {
		return nil, fmt.Errorf("failed to load rotation schedule: %w", err)
	}
	if schedule != nil {
		version = schedule.Version + 1
	}

	key, err := s.agreement.GenerateGroupKey(groupID, version)
	if err != nil {
		// The agreement already contextualizes its failures.
		return nil, err
	}

	bundles, err := s.distributor.CreateBundles(ctx, key, members)
	var omitted []string
	if err != nil {
		var partial *bundle.PartialFailureError
		if !errors.As(err, &partial) {
			key.Key.Clear()
			return nil, fmt.Errorf("failed to build key bundles: %w", err)
		}
		if len(bundles) == 0 {
			key.Key.Clear()
			return nil, fmt.Errorf("failed to build key bundles for all members: %w", partial)
		}
		// Some members missed the epoch; the rotation still lands and they
		// re-sync out of band.
		omitted = partial.FailedMembers()
	}

	if err := ctx.Err(); err != nil {
		key.Key.Clear()
		return nil, err
	}

	now := time.Now().UTC()
	newSchedule := &types.RotationSchedule{
		GroupID:      groupID,
		LastRotation: now,
		NextRotation: now.Add(s.config.Interval),
		Version:      version,
	}
	if err := s.schedules.StoreSchedule(ctx, newSchedule); err != nil {
		key.Key.Clear()
		return nil, fmt.Errorf("failed to store rotation schedule: %w", err)
	}

	s.handoverKey(ctx, groupID, key)
	s.wrapKeyAtRest(ctx, key)

	return &types.RotationResult{
		Key:      key,
		Bundles:  bundles,
		Schedule: *newSchedule,
		Omitted:  omitted,
	}, nil
}

// handoverKey makes the new key current and retains the superseded epoch
// key in the cache so in-flight payloads stay decryptable for a bounded
// window.
func (s *service) handoverKey(ctx context.Context, groupID string, key *types.GroupSharedKey) {
	s.keysMu.Lock()
	previous := s.current[groupID]
	s.current[groupID] = key
	s.keysMu.Unlock()

	if previous == nil || s.cache == nil {
		return
	}

	material := previous.Key.Get()
	s.cache.Set(ctx, keycache.Key(groupID, previous.Version), material, previous.Version)
	for i := range material {
		material[i] = 0
	}
	previous.Key.Clear()
}

// wrapKeyAtRest persists a KMS-wrapped copy of the new group key. This is
// best effort: a wrap or store failure is logged and never fails the
// rotation that already landed.
func (s *service) wrapKeyAtRest(ctx context.Context, key *types.GroupSharedKey) {
	if s.kmsProvider == nil || s.wrappedKeys == nil {
		return
	}

	material := key.Key.Get()
	defer func() {
		for i := range material {
			material[i] = 0
		}
	}()

	blob, err := s.kmsProvider.GetWrapper().Encrypt(ctx, material)
	if err != nil {
		s.zLogger.Error().
			Err(err).
			Str("groupId", key.GroupID).
			Int("version", key.Version).
			Msg("Failed to wrap group key")
		return
	}
	if err := s.wrappedKeys.StoreWrappedKey(ctx, key.GroupID, key.Version, blob); err != nil {
		s.zLogger.Error().
			Err(err).
			Str("groupId", key.GroupID).
			Int("version", key.Version).
			Msg("Failed to store wrapped group key")
	}
}
