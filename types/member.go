package types

// Role identifies a member's privilege level within a group.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// CanInitiateRotation reports whether the role may start a regular or
// emergency key rotation.
func (r Role) CanInitiateRotation() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Member represents a group member as seen by the key lifecycle subsystem.
// PublicKey holds the member's long-term ECDH public key in uncompressed
// point form.
type Member struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Role        Role   `json:"role" bson:"role"`
	PublicKey   []byte `json:"publicKey" bson:"publicKey"`
}
