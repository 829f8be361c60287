package types

import (
	"errors"
	"time"
)

// ErrThreatNotFound is returned when no stored threat event matches an ID
var ErrThreatNotFound = errors.New("threat event not found")

// ThreatType classifies a detected anomalous condition.
type ThreatType string

const (
	ThreatBruteForce        ThreatType = "brute_force"
	ThreatSuspiciousLogin   ThreatType = "suspicious_login"
	ThreatRapidKeyRotation  ThreatType = "rapid_key_rotation"
	ThreatEncryptionFailure ThreatType = "encryption_failure"
	ThreatAbnormalBehavior  ThreatType = "abnormal_behavior"
)

// ThreatLevel indicates the severity of a threat event.
type ThreatLevel string

const (
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// Rank maps the level onto an ordinal for comparisons.
func (l ThreatLevel) Rank() int {
	switch l {
	case ThreatLevelLow:
		return 1
	case ThreatLevelMedium:
		return 2
	case ThreatLevelHigh:
		return 3
	case ThreatLevelCritical:
		return 4
	}
	return 0
}

// ThreatStatus tracks the lifecycle of a threat event. Status is the only
// field of a stored event that may change after creation.
type ThreatStatus string

const (
	ThreatStatusActive        ThreatStatus = "active"
	ThreatStatusMitigated     ThreatStatus = "mitigated"
	ThreatStatusFalsePositive ThreatStatus = "false_positive"
)

// ThreatEvent records a single detection. MitigationSteps is never empty.
type ThreatEvent struct {
	ID              string            `json:"id" bson:"_id"`
	Type            ThreatType        `json:"type" bson:"type"`
	Level           ThreatLevel       `json:"level" bson:"level"`
	Status          ThreatStatus      `json:"status" bson:"status"`
	UserID          string            `json:"userId,omitempty" bson:"userId,omitempty"`
	GroupID         string            `json:"groupId,omitempty" bson:"groupId,omitempty"`
	Timestamp       time.Time         `json:"timestamp" bson:"timestamp"`
	Description     string            `json:"description" bson:"description"`
	Metadata        map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	MitigationSteps []string          `json:"mitigationSteps" bson:"mitigationSteps"`
}

// ThreatFilter narrows threat queries. Zero-valued fields are ignored.
type ThreatFilter struct {
	Type    ThreatType   `json:"type,omitempty"`
	Level   ThreatLevel  `json:"level,omitempty"`
	Status  ThreatStatus `json:"status,omitempty"`
	UserID  string       `json:"userId,omitempty"`
	GroupID string       `json:"groupId,omitempty"`
	Since   time.Time    `json:"since,omitempty"`
	Until   time.Time    `json:"until,omitempty"`
}

// Matches reports whether the event satisfies every set filter field.
func (f *ThreatFilter) Matches(e *ThreatEvent) bool {
	if e == nil {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.GroupID != "" && e.GroupID != f.GroupID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
