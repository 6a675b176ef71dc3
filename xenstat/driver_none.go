//go:build noxenstat

package xenstat

// NewDriver returns a driver for hosts built without libxenstat. Every Open fails
// with ErrUnavailable.
func NewDriver() Driver {
	return &MockDriver{InjectedErr: ErrUnavailable}
}
