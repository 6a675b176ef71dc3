package xenstat

import "errors"

var (
	// ErrUnavailable is returned by Open when the statistics subsystem cannot be initialized,
	// for example because the host does not run Xen or the caller lacks privileges.
	ErrUnavailable = errors.New("xenstat: statistics subsystem unavailable")

	// ErrNoData means the subsystem handle is valid but no node snapshot was returned.
	ErrNoData = errors.New("xenstat: no snapshot data")

	ErrNotFound = errors.New("xenstat: not found")
	ErrClosed   = errors.New("xenstat: snapshot closed")
)
