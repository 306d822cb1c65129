package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed connection.
	ErrClosed = errors.New("transport: closed")

	// ErrAlreadyStarted is returned when Start is called on a running connection.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrNotReady is returned when sending before the connection is ready.
	ErrNotReady = errors.New("transport: connection not ready")

	// ErrInvalidAddress is returned when the host is empty or unparseable.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("transport: invalid port (must be 1-65535)")

	// ErrNoHandler is returned when no message handler is configured.
	ErrNoHandler = errors.New("transport: no message handler configured")

	// ErrMessageTooLarge is returned when a payload exceeds one datagram.
	ErrMessageTooLarge = errors.New("transport: message too large")
)
