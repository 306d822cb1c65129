// Package discovery implements DNS-SD (mDNS) discovery for session peers.
//
// This package provides:
//   - Browser: a bounded-duration search for an advertised service type
//   - AddressResolver: selection of a concrete IPv4 address for a found service
//   - Advertiser: service registration for the answering side
//
// The underlying mDNS machinery is grandcat/zeroconf, injected behind small
// interfaces so tests run without real network I/O.
package discovery

import "strings"

// DefaultDomain is the default mDNS registration domain, selected when the
// caller passes an empty domain.
const DefaultDomain = "local."

// ServiceType is a DNS-SD service type string of the form "_<name>._udp." or
// "_<name>._tcp." with a mandatory trailing period.
type ServiceType string

// Validate checks the service type string form before any I/O is attempted.
func (s ServiceType) Validate() error {
	str := string(s)
	if len(str) < len("_x._udp.") || !strings.HasPrefix(str, "_") {
		return ErrInvalidServiceType
	}
	if !strings.HasSuffix(str, "._udp.") && !strings.HasSuffix(str, "._tcp.") {
		return ErrInvalidServiceType
	}
	// The <name> part must be non-empty beyond the leading underscore.
	name := strings.TrimSuffix(strings.TrimSuffix(str, "._udp."), "._tcp.")
	if len(name) < 2 {
		return ErrInvalidServiceType
	}
	return nil
}

// IsValid reports whether the service type has a valid form.
func (s ServiceType) IsValid() bool {
	return s.Validate() == nil
}

// registerString returns the form zeroconf expects (no trailing period).
func (s ServiceType) registerString() string {
	return strings.TrimSuffix(string(s), ".")
}

// normalizeDomain maps an empty domain to the default registration domain.
func normalizeDomain(domain string) string {
	if domain == "" {
		return DefaultDomain
	}
	return domain
}
