// Package wire defines the control messages exchanged over the datagram
// transport.
//
// The protocol uses four UTF-8 control tokens, each sent as a complete
// datagram payload:
//   - "dscv_discover:<deviceName>" requests a handshake
//   - "dscv_shake" confirms peer readiness
//   - "dscv_ack" acknowledges an application payload
//   - "dscv_disconnect" requests teardown
//
// Any payload not containing a control token is opaque application data.
// Tokens are matched by substring containment, not exact equality: a payload
// carrying "dscv_shake" anywhere counts as a handshake confirmation. Peers in
// the field rely on this, so it must be preserved.
package wire

import "strings"

// Control tokens.
const (
	// TokenDiscover prefixes a handshake request. The requester's device
	// name follows the colon.
	TokenDiscover = "dscv_discover:"

	// TokenShake confirms peer readiness, completing the handshake.
	TokenShake = "dscv_shake"

	// TokenAck acknowledges receipt of an application payload.
	TokenAck = "dscv_ack"

	// TokenDisconnect requests graceful teardown of the session.
	TokenDisconnect = "dscv_disconnect"
)

// Discover builds a handshake request payload for the given device name.
func Discover(deviceName string) string {
	return TokenDiscover + deviceName
}

// IsDiscover reports whether the payload carries a handshake request.
func IsDiscover(payload string) bool {
	return strings.Contains(payload, TokenDiscover)
}

// IsShake reports whether the payload carries a handshake confirmation.
func IsShake(payload string) bool {
	return strings.Contains(payload, TokenShake)
}

// IsAck reports whether the payload carries an acknowledgement.
func IsAck(payload string) bool {
	return strings.Contains(payload, TokenAck)
}

// IsDisconnect reports whether the payload carries a teardown request.
func IsDisconnect(payload string) bool {
	return strings.Contains(payload, TokenDisconnect)
}

// IsControl reports whether the payload carries any control token.
// Payloads that are not control messages are opaque application data.
func IsControl(payload string) bool {
	return IsDiscover(payload) || IsShake(payload) || IsAck(payload) || IsDisconnect(payload)
}

// DeviceName extracts the device name from a handshake request payload.
// Returns false if the payload is not a handshake request.
func DeviceName(payload string) (string, bool) {
	idx := strings.Index(payload, TokenDiscover)
	if idx < 0 {
		return "", false
	}
	return payload[idx+len(TokenDiscover):], true
}
