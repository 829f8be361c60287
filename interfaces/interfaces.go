// Package interfaces defines all service interfaces for the module.
// IMPORTANT: This is the single source of truth for service interfaces.
// Do not define interfaces in other files.
package interfaces

import (
	"context"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"

	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// Crypto Interfaces

// CryptoProvider wraps the platform cryptographic primitives: ECDH key
// agreement over a named curve, AES-GCM payload protection and secure
// random bytes. Implementations are stateless and safe for concurrent use.
type CryptoProvider interface {
	// GenerateKeyPair produces a fresh elliptic-curve key pair.
	GenerateKeyPair() (*types.KeyPair, error)

	// DeriveSharedKey performs one ECDH agreement between the local private
	// scalar and the counterparty's public key, then derives a symmetric
	// key through the fixed KDF. Both sides of an exchange derive the same
	// key.
	DeriveSharedKey(localPrivate *types.SecureBytes, remotePublic []byte) ([]byte, error)

	// Encrypt seals plaintext under the key with a fresh random nonce.
	Encrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error)

	// Decrypt opens ciphertext; it fails closed on tag mismatch and never
	// returns partial plaintext.
	Decrypt(key, ciphertext, nonce []byte) ([]byte, error)

	// RandomBytes returns n cryptographically secure random bytes.
	RandomBytes(n int) ([]byte, error)
}

// KeyAgreement derives and uses per-group symmetric keys.
type KeyAgreement interface {
	// GenerateGroupKey produces a fresh group shared key for the given
	// epoch. The key is generated directly; per-member ECDH is used only
	// for its distribution.
	GenerateGroupKey(groupID string, version int) (*types.GroupSharedKey, error)

	// EncryptPayload protects a group payload under the shared key.
	EncryptPayload(ctx context.Context, key *types.GroupSharedKey, plaintext []byte) (ciphertext, nonce []byte, err error)

	// DecryptPayload opens a group payload; fails closed on tampering.
	DecryptPayload(ctx context.Context, key *types.GroupSharedKey, ciphertext, nonce []byte) ([]byte, error)
}

// BundleDistributor builds one encrypted key bundle per member.
type BundleDistributor interface {
	// CreateBundles builds an encrypted bundle of the group key material
	// for every member of the roster. Per-member failures do not abort the
	// remaining members; they are reported through a partial-failure error
	// alongside the bundles that did succeed.
	CreateBundles(ctx context.Context, key *types.GroupSharedKey, members []types.Member) (map[string]types.KeyBundle, error)

	// Open decrypts a bundle with the member's long-term private key. It is
	// the member-side counterpart of CreateBundles.
	Open(bundle *types.KeyBundle, memberPrivate *types.SecureBytes) ([]byte, error)
}

// Rotation Interfaces

// RotationService owns per-group rotation schedules and executes rotations.
type RotationService interface {
	// IsRotationNeeded reports whether the group is due: no schedule exists
	// or the scheduled time has passed.
	IsRotationNeeded(ctx context.Context, groupID string) (bool, error)

	// CanInitiate reports whether the member may start a rotation.
	CanInitiate(member types.Member) bool

	// GetSchedule returns the group's schedule, or types.ErrScheduleNotFound.
	GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error)

	// Rotate generates new key material, builds per-member bundles and
	// advances the schedule. At most one rotation per group may be in
	// flight; a concurrent attempt fails fast.
	Rotate(ctx context.Context, groupID string, initiator types.Member, members []types.Member) (*types.RotationResult, error)

	// EmergencyRotate runs the same cryptographic path regardless of the
	// schedule. Authorization is still enforced.
	EmergencyRotate(ctx context.Context, groupID string, initiator types.Member, members []types.Member, reason string) (*types.RotationResult, error)
}

// ScheduleStore persists per-group rotation schedules.
type ScheduleStore interface {
	// GetSchedule returns the schedule for a group, or
	// types.ErrScheduleNotFound if the group never rotated.
	GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error)

	// StoreSchedule inserts or replaces the group's schedule.
	StoreSchedule(ctx context.Context, schedule *types.RotationSchedule) error

	// DeleteSchedule removes the group's schedule.
	DeleteSchedule(ctx context.Context, groupID string) error
}

// WrappedKeyStore persists KMS-wrapped group key material at rest so a
// restarted instance can still serve in-flight decryption. Plaintext key
// material is never stored.
type WrappedKeyStore interface {
	StoreWrappedKey(ctx context.Context, groupID string, version int, blob *wrapping.BlobInfo) error
	GetWrappedKey(ctx context.Context, groupID string) (*wrapping.BlobInfo, int, error)
}

// Threat Interfaces

// ThreatDetector maintains sliding-window counters per subject and emits
// threat events with recommended mitigations.
type ThreatDetector interface {
	// AnalyzeLoginAttempt records a login attempt. It returns a threat
	// event when the attempt crosses a detection threshold, nil otherwise.
	AnalyzeLoginAttempt(ctx context.Context, userID string, success bool, metadata map[string]string) (*types.ThreatEvent, error)

	// AnalyzeKeyRotation records a rotation for rapid-rotation detection.
	AnalyzeKeyRotation(ctx context.Context, groupID, initiatorID string) (*types.ThreatEvent, error)

	// AnalyzeEncryptionFailure records a cryptographic failure; every call
	// yields a critical threat event.
	AnalyzeEncryptionFailure(ctx context.Context, userID, groupID, operation string, cause error) (*types.ThreatEvent, error)

	// RecordBehaviorEvent feeds the per-user behavioral counters.
	RecordBehaviorEvent(ctx context.Context, userID, eventType string) (*types.ThreatEvent, error)

	// QueryThreats returns stored threat events matching the filter,
	// newest first.
	QueryThreats(ctx context.Context, filter types.ThreatFilter) ([]*types.ThreatEvent, error)

	// MarkThreatStatus transitions an active threat to mitigated or
	// false-positive, recording the operator.
	MarkThreatStatus(ctx context.Context, id string, status types.ThreatStatus, operator string) (*types.ThreatEvent, error)

	// HasActiveThreat reports whether any active threat references the
	// given user or group.
	HasActiveThreat(ctx context.Context, userID, groupID string) (bool, error)
}

// ThreatStore persists threat events.
type ThreatStore interface {
	Append(ctx context.Context, event *types.ThreatEvent) error
	Get(ctx context.Context, id string) (*types.ThreatEvent, error)
	Update(ctx context.Context, event *types.ThreatEvent) error
	Query(ctx context.Context, filter types.ThreatFilter) ([]*types.ThreatEvent, error)
}

// Audit Interfaces

// AuditService is the bounded, retained audit log.
type AuditService interface {
	// Log appends an event. Critical-severity events additionally trigger
	// the configured alert sink.
	Log(ctx context.Context, eventType, userID string, metadata map[string]string, severity types.Severity, status types.EventStatus, groupID string) (*types.AuditEvent, error)

	// Query returns stored events matching the filter, newest first.
	Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error)

	// LogKeyRotation records the outcome of a rotation attempt.
	LogKeyRotation(ctx context.Context, groupID, userID string, success bool, metadata map[string]string) (*types.AuditEvent, error)

	// LogEmergencyRotation records the start of an emergency rotation with
	// critical severity; the caller logs a follow-up event on resolution.
	LogEmergencyRotation(ctx context.Context, groupID, userID, reason string) (*types.AuditEvent, error)

	// Sweep removes events past the retention period and returns the count.
	Sweep(ctx context.Context) (int, error)

	// Close stops the background retention sweeper.
	Close() error
}

// AuditStore persists audit events, newest first, bounded by the store's
// configured cap.
type AuditStore interface {
	Append(ctx context.Context, event *types.AuditEvent) error
	Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error)

	// Purge deletes events older than the given instant and returns the
	// number removed.
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// Collaborator Interfaces

// RosterProvider supplies the member roster for a group.
type RosterProvider interface {
	GetMembers(ctx context.Context, groupID string) ([]types.Member, error)
}

// AlertSink receives out-of-band notifications for critical events. Calls
// are fire-and-forget; implementations must not block.
type AlertSink interface {
	Alert(ctx context.Context, event *types.AuditEvent)
}

// KMS Interfaces

// KMSProvider defines the interface for KMS providers.
type KMSProvider interface {
	// GetWrapper returns the underlying KMS wrapper
	GetWrapper() wrapping.Wrapper

	// Test performs a test encryption/decryption
	Test(ctx context.Context) error

	// HealthCheck performs a comprehensive health check
	HealthCheck(ctx context.Context) error

	// GetLastHealthCheckError returns the last health check error
	GetLastHealthCheckError() error
}

// Cache Interfaces

// KeyCache retains superseded group epoch keys with secure memory handling
// for a bounded window.
type KeyCache interface {
	// Enable enables the cache
	Enable()

	// Disable disables the cache and securely wipes all entries
	Disable()

	// IsEnabled returns whether the cache is enabled
	IsEnabled() bool

	// Get retrieves a key from the cache
	Get(ctx context.Context, key string) (*types.SecureBytes, int, bool)

	// Set adds a key to the cache with secure memory handling
	Set(ctx context.Context, key string, value []byte, version int)

	// Delete securely wipes and removes a key from the cache
	Delete(key string)

	// Clear securely wipes and removes all entries from the cache
	Clear()

	// GetStats returns cache statistics
	GetStats(ctx context.Context) types.CacheStats
}

// Orchestration Interfaces

// Orchestrator is the top-level surface binding rotation scheduling,
// threat detection and audit logging.
type Orchestrator interface {
	Rotate(ctx context.Context, groupID string, initiator types.Member) (*types.RotationResult, error)
	EmergencyRotate(ctx context.Context, groupID string, initiator types.Member, reason string) (*types.RotationResult, error)
	IsRotationNeeded(ctx context.Context, groupID string) (bool, error)
	CanInitiate(member types.Member) bool
	GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error)

	AnalyzeLoginAttempt(ctx context.Context, userID string, success bool, metadata map[string]string) (*types.ThreatEvent, error)
	AnalyzeKeyRotation(ctx context.Context, groupID, initiatorID string) (*types.ThreatEvent, error)
	AnalyzeEncryptionFailure(ctx context.Context, userID, groupID, operation string, cause error) (*types.ThreatEvent, error)
	QueryThreats(ctx context.Context, filter types.ThreatFilter) ([]*types.ThreatEvent, error)
	MarkThreatStatus(ctx context.Context, id string, status types.ThreatStatus, operator string) (*types.ThreatEvent, error)

	LogSecurityEvent(ctx context.Context, eventType, userID string, metadata map[string]string, severity types.Severity, status types.EventStatus, groupID string) (*types.AuditEvent, error)
	QueryEvents(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error)

	Shutdown(ctx context.Context) error
}
