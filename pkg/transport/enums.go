// Package transport owns the datagram connection for a session.
//
// A Conn wraps one connected datagram socket. Opening is asynchronous:
// readiness and failure are reported through a state callback, sends complete
// through per-send completion callbacks, and inbound datagrams are delivered
// through a persistently re-armed read loop. Transport failures map to a
// small POSIX-derived reason taxonomy.
package transport

// State is the lifecycle state of a Conn, reported via the state callback.
type State int

const (
	// StateIdle is the initial state before Start.
	StateIdle State = iota

	// StateReady means the connection is open and the read loop is armed.
	StateReady

	// StateFailed means the connection hit a transport error.
	StateFailed

	// StateClosed means the connection was closed locally.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// IsValid reports whether the state is a known value.
func (s State) IsValid() bool {
	return s >= StateIdle && s <= StateClosed
}

// IsTerminal reports whether the connection is done.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateClosed
}
