package session

import "errors"

// Session errors. Failures surface through the delegate as a transition to
// StateFailed carrying one of these (or a wrapped discovery/transport error);
// there is no silent recovery.
var (
	// ErrDeviceNameRequired is returned when constructing a session
	// without a device name.
	ErrDeviceNameRequired = errors.New("session: device name required")

	// ErrDiscoverTimeout means no service was found within the search bound.
	ErrDiscoverTimeout = errors.New("session: discovery timed out")

	// ErrShakeNoResponse means the handshake went unacknowledged for the
	// maximum number of attempts.
	ErrShakeNoResponse = errors.New("session: no handshake response")

	// ErrNotConnected is returned when sending before the handshake
	// completed.
	ErrNotConnected = errors.New("session: not connected")

	// ErrLowStrength records that the link strength fell below the dead
	// threshold while connected.
	ErrLowStrength = errors.New("session: link strength below threshold")
)
