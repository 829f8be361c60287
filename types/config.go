package types

import "time"

// Default values for the lifecycle configuration.
const (
	DefaultRotationInterval = 24 * time.Hour
	DefaultRotationTimeout  = 30 * time.Second

	DefaultFailedLoginWindow    = 5 * time.Minute
	DefaultFailedLoginThreshold = 5
	DefaultRotationWindow       = time.Hour
	DefaultRotationThreshold    = 3
	DefaultBehaviorWindow       = 15 * time.Minute
	DefaultBehaviorThreshold    = 100

	DefaultMaxAuditEvents    = 10000
	DefaultAuditRetention    = 90 * 24 * time.Hour
	DefaultSweepInterval     = time.Hour
	DefaultKeyRetention      = 15 * time.Minute
	DefaultEmergencyCooldown = 10 * time.Minute
)

// RotationConfig holds per-service rotation settings.
type RotationConfig struct {
	// Interval between scheduled rotations of a group key.
	Interval time.Duration `json:"interval" bson:"interval"`

	// Timeout bounds a single rotation attempt; an expired attempt is
	// treated as a failure and rolled back.
	Timeout time.Duration `json:"timeout" bson:"timeout"`
}

// DefaultRotationConfig returns the standard rotation settings.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		Interval: DefaultRotationInterval,
		Timeout:  DefaultRotationTimeout,
	}
}

// ThreatConfig holds sliding-window sizes and thresholds for detection.
type ThreatConfig struct {
	FailedLoginWindow    time.Duration `json:"failedLoginWindow" bson:"failedLoginWindow"`
	FailedLoginThreshold int           `json:"failedLoginThreshold" bson:"failedLoginThreshold"`

	RotationWindow    time.Duration `json:"rotationWindow" bson:"rotationWindow"`
	RotationThreshold int           `json:"rotationThreshold" bson:"rotationThreshold"`

	BehaviorWindow    time.Duration `json:"behaviorWindow" bson:"behaviorWindow"`
	BehaviorThreshold int           `json:"behaviorThreshold" bson:"behaviorThreshold"`
}

// DefaultThreatConfig returns the standard detection thresholds.
func DefaultThreatConfig() ThreatConfig {
	return ThreatConfig{
		FailedLoginWindow:    DefaultFailedLoginWindow,
		FailedLoginThreshold: DefaultFailedLoginThreshold,
		RotationWindow:       DefaultRotationWindow,
		RotationThreshold:    DefaultRotationThreshold,
		BehaviorWindow:       DefaultBehaviorWindow,
		BehaviorThreshold:    DefaultBehaviorThreshold,
	}
}

// AuditConfig bounds the audit store.
type AuditConfig struct {
	// MaxEvents caps the number of retained events; the oldest entries
	// beyond the cap are evicted.
	MaxEvents int `json:"maxEvents" bson:"maxEvents"`

	// RetentionPeriod is the maximum age of a retained event.
	RetentionPeriod time.Duration `json:"retentionPeriod" bson:"retentionPeriod"`

	// SweepInterval is how often the background retention sweep runs.
	SweepInterval time.Duration `json:"sweepInterval" bson:"sweepInterval"`
}

// DefaultAuditConfig returns the standard audit bounds.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		MaxEvents:       DefaultMaxAuditEvents,
		RetentionPeriod: DefaultAuditRetention,
		SweepInterval:   DefaultSweepInterval,
	}
}

// CacheConfig configures the superseded-key cache.
type CacheConfig struct {
	// Enabled indicates whether superseded keys are retained at all.
	Enabled bool `json:"enabled" bson:"enabled"`

	// TTL is how long a superseded epoch key stays decryptable. If zero,
	// DefaultKeyRetention is used.
	TTL time.Duration `json:"ttl,omitempty" bson:"ttl,omitempty"`
}

// GetEffectiveTTL returns the effective retention for superseded keys.
func (c *CacheConfig) GetEffectiveTTL() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultKeyRetention
}

// CacheStats holds statistics about the key cache.
type CacheStats struct {
	Size        int       `json:"size" bson:"size"`
	Hits        int64     `json:"hits" bson:"hits"`
	Misses      int64     `json:"misses" bson:"misses"`
	LastPurged  time.Time `json:"lastPurged" bson:"lastPurged"`
	LastAccess  time.Time `json:"lastAccess" bson:"lastAccess"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// OrchestratorConfig tunes the orchestration layer.
type OrchestratorConfig struct {
	// EmergencyCooldown suppresses threat-triggered emergency rotations
	// for a group after one has fired, so a self-triggered rotation cannot
	// continuously re-trigger detection.
	EmergencyCooldown time.Duration `json:"emergencyCooldown" bson:"emergencyCooldown"`
}

// DefaultOrchestratorConfig returns the standard orchestration settings.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{EmergencyCooldown: DefaultEmergencyCooldown}
}
