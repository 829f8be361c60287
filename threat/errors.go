package threat

import "errors"

var (
	// ErrThreatNotActive is returned when a status transition is attempted
	// on a threat that is no longer active
	ErrThreatNotActive = errors.New("threat event is not active")

	// ErrUnknownStatus is returned for a status outside the known lifecycle
	ErrUnknownStatus = errors.New("unknown threat status")

	// ErrQueryFailed is returned when the backing store cannot serve a query
	ErrQueryFailed = errors.New("threat query failed")
)
