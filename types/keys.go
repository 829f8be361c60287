package types

import (
	"errors"
	"time"
)

// Common errors
var (
	// ErrScheduleNotFound is returned when no rotation schedule exists for a group
	ErrScheduleNotFound = errors.New("rotation schedule not found")

	// ErrWrappedKeyNotFound is returned when no wrapped group key is persisted for a group
	ErrWrappedKeyNotFound = errors.New("wrapped group key not found")
)

// CurveP384 tags key material generated over NIST P-384.
const CurveP384 = "P-384"

// KeyPair holds ephemeral asymmetric key material for one rotation epoch.
// The private scalar is wrapped in SecureBytes; it never leaves the owning
// process and must be cleared once bundle construction is finished.
type KeyPair struct {
	Curve   string       `json:"curve"`
	Public  []byte       `json:"public"`
	Private *SecureBytes `json:"-"`
}

// Clear wipes the private scalar.
func (k *KeyPair) Clear() {
	if k != nil && k.Private != nil {
		k.Private.Clear()
	}
}

// GroupSharedKey is the symmetric key protecting current-epoch group
// payloads. Exactly one shared key is active per group at a time; a
// superseded key is retained only long enough to decrypt in-flight
// payloads and is then wiped.
type GroupSharedKey struct {
	GroupID   string       `json:"groupId" bson:"groupId"`
	Version   int          `json:"version" bson:"version"`
	Key       *SecureBytes `json:"-" bson:"-"`
	CreatedAt time.Time    `json:"createdAt" bson:"createdAt"`
}

// KeyBundle is the per-member encrypted envelope carrying newly rotated
// group key material. It is decryptable only by the named member, using
// the member's long-term private key and the ephemeral public key inside.
type KeyBundle struct {
	ID              string    `json:"id" bson:"_id"`
	MemberID        string    `json:"memberId" bson:"memberId"`
	Ciphertext      []byte    `json:"ciphertext" bson:"ciphertext"`
	Nonce           []byte    `json:"nonce" bson:"nonce"`
	EphemeralPublic []byte    `json:"ephemeralPublic" bson:"ephemeralPublic"`
	SenderVersion   int       `json:"senderVersion" bson:"senderVersion"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

// RotationSchedule tracks per-group rotation state. Version strictly
// increases on each successful rotation; a failed rotation leaves the
// schedule untouched.
type RotationSchedule struct {
	GroupID      string    `json:"groupId" bson:"_id"`
	LastRotation time.Time `json:"lastRotation" bson:"lastRotation"`
	NextRotation time.Time `json:"nextRotation" bson:"nextRotation"`
	Version      int       `json:"version" bson:"version"`
}

// Due reports whether a rotation is due at the given instant. A nil
// schedule (group never rotated) is always due.
func (s *RotationSchedule) Due(now time.Time) bool {
	if s == nil {
		return true
	}
	return !now.Before(s.NextRotation)
}

// RotationResult is returned by a successful rotation: the new shared key,
// one bundle per reachable member and the advanced schedule.
type RotationResult struct {
	Key      *GroupSharedKey      `json:"key"`
	Bundles  map[string]KeyBundle `json:"bundles"`
	Schedule RotationSchedule     `json:"schedule"`

	// Omitted lists members for which no bundle could be built; they need
	// out-of-band re-sync before they can read current-epoch payloads.
	Omitted []string `json:"omitted,omitempty"`
}
