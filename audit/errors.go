package audit

import "errors"

var (
	// ErrPersistence is returned when an event cannot be appended to the
	// backing store. Callers that treat auditing as best-effort should log
	// and continue; they must not fail the audited operation.
	ErrPersistence = errors.New("audit event persistence failed")

	// ErrServiceClosed is returned when the service is used after Close
	ErrServiceClosed = errors.New("audit service is closed")
)
