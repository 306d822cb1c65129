package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when starting an already-started search or advertisement.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrInvalidServiceType is returned for service types not of the form
	// "_<name>._udp." / "_<name>._tcp." with trailing period.
	ErrInvalidServiceType = errors.New("discovery: invalid service type")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port (must be 1-65535)")

	// ErrTimeout is returned when no service is found within the search bound.
	ErrTimeout = errors.New("discovery: search timed out")

	// ErrCanceled is returned when a search is stopped by the caller before
	// a candidate was found. A caller-initiated stop is not a failure.
	ErrCanceled = errors.New("discovery: search canceled")

	// ErrServiceNotFound is returned when a lookup yields no matching instance.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrNoIPv4Address is returned when a service record offers no usable
	// IPv4 address.
	ErrNoIPv4Address = errors.New("discovery: no IPv4 address in service record")
)
