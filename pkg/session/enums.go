// Package session implements the liveness-aware session protocol.
//
// A Session drives discovery, handshake, acknowledgement tracking, and
// teardown over a single datagram connection:
//
//	disconnected --Discover/Connect--> connecting
//	connecting   --handshake received--> connected
//	connecting   --timeout, retries exhausted--> failed
//	connected    --low strength / disconnect / Close--> disconnected
//	connected    --transport error--> failed
//
// The session owns every timer it arms; a timer never outlives the attempt
// that created it. Each attempt carries an epoch token so callbacks from a
// superseded attempt are discarded instead of mutating fresh state.
package session

// State is the connection state of a Session.
type State int

const (
	// StateDisconnected is the initial state and the default final state
	// after teardown.
	StateDisconnected State = iota

	// StateConnecting means discovery or a handshake is in flight.
	StateConnecting

	// StateConnected means the handshake was acknowledged by the peer.
	StateConnected

	// StateFailed is a terminal state carrying the failure in Err().
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsValid reports whether the state is a known value.
func (s State) IsValid() bool {
	return s >= StateDisconnected && s <= StateFailed
}

// IsQuiescent reports whether the session is at rest: no discovery, no
// transport, no timers. A fresh Discover or Connect may leave this state.
func (s State) IsQuiescent() bool {
	return s == StateDisconnected || s == StateFailed
}
