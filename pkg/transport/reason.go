package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Reason classifies a transport failure. Reasons are derived from the
// platform's POSIX error code; unmapped codes collapse to ReasonOther.
type Reason int

const (
	// ReasonOther is any transport failure without a dedicated mapping.
	ReasonOther Reason = iota

	// ReasonAddressUnavailable means the requested address cannot be assigned.
	ReasonAddressUnavailable

	// ReasonPermissionDenied means the operation was not permitted.
	ReasonPermissionDenied

	// ReasonDeviceBusy means the underlying device or resource was busy.
	ReasonDeviceBusy

	// ReasonCanceled means the operation was canceled.
	ReasonCanceled

	// ReasonConnectionRefused means the peer actively refused the datagram.
	ReasonConnectionRefused

	// ReasonHostDown means the peer host is down.
	ReasonHostDown

	// ReasonAlreadyConnected means the socket was already connected.
	ReasonAlreadyConnected

	// ReasonTimeout means the operation timed out.
	ReasonTimeout

	// ReasonNetworkDown means the local network is down.
	ReasonNetworkDown
)

// String returns a human-readable name for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonAddressUnavailable:
		return "AddressUnavailable"
	case ReasonPermissionDenied:
		return "PermissionDenied"
	case ReasonDeviceBusy:
		return "DeviceBusy"
	case ReasonCanceled:
		return "Canceled"
	case ReasonConnectionRefused:
		return "ConnectionRefused"
	case ReasonHostDown:
		return "HostDown"
	case ReasonAlreadyConnected:
		return "AlreadyConnected"
	case ReasonTimeout:
		return "Timeout"
	case ReasonNetworkDown:
		return "NetworkDown"
	default:
		return "Other"
	}
}

// IsValid reports whether the reason is a known value.
func (r Reason) IsValid() bool {
	return r >= ReasonOther && r <= ReasonNetworkDown
}

// ReasonFromError maps a transport-level error to its failure reason by
// unwrapping to the underlying POSIX error code where one exists.
func ReasonFromError(err error) Reason {
	if err == nil {
		return ReasonOther
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EADDRNOTAVAIL:
			return ReasonAddressUnavailable
		case syscall.EACCES, syscall.EPERM:
			return ReasonPermissionDenied
		case syscall.EBUSY:
			return ReasonDeviceBusy
		case syscall.ECANCELED:
			return ReasonCanceled
		case syscall.ECONNREFUSED:
			return ReasonConnectionRefused
		case syscall.EHOSTDOWN, syscall.EHOSTUNREACH:
			return ReasonHostDown
		case syscall.EISCONN:
			return ReasonAlreadyConnected
		case syscall.ETIMEDOUT:
			return ReasonTimeout
		case syscall.ENETDOWN, syscall.ENETUNREACH:
			return ReasonNetworkDown
		default:
			return ReasonOther
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return ReasonCanceled
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	return ReasonOther
}
