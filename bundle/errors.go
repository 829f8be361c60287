package bundle

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoRecipients is returned when a bundle set is requested for an
	// empty roster
	ErrNoRecipients = errors.New("no recipients for key bundle")

	// ErrMissingKeyMaterial is returned when the group key to distribute
	// has no material
	ErrMissingKeyMaterial = errors.New("missing group key material")

	// ErrMissingMemberKey is returned when a member has no registered
	// public key
	ErrMissingMemberKey = errors.New("member has no public key")
)

// PartialFailureError reports per-member bundle failures. Bundles for the
// remaining members were still built; callers decide whether a partial set
// is acceptable for their operation.
type PartialFailureError struct {
	Failed map[string]error
}

func (e *PartialFailureError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("failed to build key bundles for %d member(s): %v", len(ids), ids)
}

// Unwrap exposes the per-member causes so errors.Is and errors.As reach
// through the aggregate.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// FailedMembers returns the member IDs without a bundle, sorted.
func (e *PartialFailureError) FailedMembers() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
