package rotation

import "errors"

var (
	// ErrUnauthorizedRotation is returned when the initiating member's role
	// does not permit starting a rotation
	ErrUnauthorizedRotation = errors.New("member is not authorized to initiate rotation")

	// ErrRotationInProgress is returned when a rotation for the group is
	// already in flight; callers should retry after it completes
	ErrRotationInProgress = errors.New("rotation already in progress for group")

	// ErrNoMembers is returned when a rotation is attempted with an empty
	// roster
	ErrNoMembers = errors.New("no members to rotate key for")
)
