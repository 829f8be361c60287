package types

import "time"

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventStatus records the outcome of the audited action.
type EventStatus string

const (
	StatusSuccess    EventStatus = "success"
	StatusFailure    EventStatus = "failure"
	StatusInProgress EventStatus = "in_progress"
)

// Audit event types
const (
	EventTypeKeyRotationStarted   = "key_rotation.started"
	EventTypeKeyRotationCompleted = "key_rotation.completed"
	EventTypeKeyRotationFailed    = "key_rotation.failed"
	EventTypeKeyRotationDenied    = "key_rotation.denied"
	EventTypeEmergencyRotation    = "key_rotation.emergency"
	EventTypeLoginAttempt         = "auth.login_attempt"
	EventTypeThreatDetected       = "threat.detected"
	EventTypeThreatStatusChanged  = "threat.status_changed"
)

// AuditEvent is an immutable record of a security-relevant action. It is
// never mutated after creation; retention cleanup is the only way an event
// leaves the store.
type AuditEvent struct {
	ID        string            `json:"id" bson:"_id"`
	EventType string            `json:"eventType" bson:"eventType"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	UserID    string            `json:"userId" bson:"userId"`
	GroupID   string            `json:"groupId,omitempty" bson:"groupId,omitempty"`
	Severity  Severity          `json:"severity" bson:"severity"`
	Status    EventStatus       `json:"status" bson:"status"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// AuditFilter narrows audit queries. Zero-valued fields are ignored;
// Limit caps the number of returned events (0 means no cap).
type AuditFilter struct {
	EventType string      `json:"eventType,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	GroupID   string      `json:"groupId,omitempty"`
	Severity  Severity    `json:"severity,omitempty"`
	Status    EventStatus `json:"status,omitempty"`
	From      time.Time   `json:"from,omitempty"`
	To        time.Time   `json:"to,omitempty"`
	Limit     int         `json:"limit,omitempty"`
}

// Matches reports whether the event satisfies every set filter field.
// Limit is not evaluated here; stores apply it after matching.
func (f *AuditFilter) Matches(e *AuditEvent) bool {
	if e == nil {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.GroupID != "" && e.GroupID != f.GroupID {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
