package discovery

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultResolveTimeout bounds address resolution for a discovered service.
const DefaultResolveTimeout = 5 * time.Second

// ResolveReason classifies an address resolution failure.
//
// Reasons are derived from the platform resolver's numeric code table.
// Unmapped codes collapse to ResolveReasonUnknown.
type ResolveReason int

const (
	// ResolveReasonUnknown is any resolver failure without a dedicated mapping.
	ResolveReasonUnknown ResolveReason = iota

	// ResolveReasonServiceNotFound means the instance could not be found.
	ResolveReasonServiceNotFound

	// ResolveReasonBusy means the resolver was occupied with another request.
	ResolveReasonBusy

	// ResolveReasonBadConfiguration means the request was malformed.
	ResolveReasonBadConfiguration

	// ResolveReasonCanceled means the resolution was stopped by the caller.
	ResolveReasonCanceled

	// ResolveReasonTimeout means the resolution did not complete in time.
	ResolveReasonTimeout
)

// String returns a human-readable name for the resolve reason.
func (r ResolveReason) String() string {
	switch r {
	case ResolveReasonServiceNotFound:
		return "ServiceNotFound"
	case ResolveReasonBusy:
		return "Busy"
	case ResolveReasonBadConfiguration:
		return "BadConfiguration"
	case ResolveReasonCanceled:
		return "Canceled"
	case ResolveReasonTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// IsValid reports whether the reason is a known value.
func (r ResolveReason) IsValid() bool {
	return r >= ResolveReasonUnknown && r <= ResolveReasonTimeout
}

// Platform resolver error codes. This is a fixed external lookup table keyed
// by the numeric codes the platform resolver emits; it is not application
// logic to extend.
const (
	resolveCodeUnknown     = -72000
	resolveCodeCollision   = -72001
	resolveCodeNotFound    = -72002
	resolveCodeBusy        = -72003
	resolveCodeBadArgument = -72004
	resolveCodeCanceled    = -72005
	resolveCodeInvalid     = -72006
	resolveCodeTimeout     = -72007
)

// ResolveReasonFromCode maps a platform resolver error code to a reason.
func ResolveReasonFromCode(code int) ResolveReason {
	switch code {
	case resolveCodeNotFound:
		return ResolveReasonServiceNotFound
	case resolveCodeBusy:
		return ResolveReasonBusy
	case resolveCodeBadArgument, resolveCodeInvalid:
		return ResolveReasonBadConfiguration
	case resolveCodeCanceled:
		return ResolveReasonCanceled
	case resolveCodeTimeout:
		return ResolveReasonTimeout
	default:
		return ResolveReasonUnknown
	}
}

// SelectIPv4 returns the first IPv4 address from the raw records, ignoring
// IPv6 and non-parseable entries, regardless of order.
func SelectIPv4(addrs []net.IP) (net.IP, error) {
	for _, ip := range addrs {
		if ip == nil {
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, ErrNoIPv4Address
}

// AddressResolverConfig holds configuration for the AddressResolver.
type AddressResolverConfig struct {
	// MDNSResolver is the underlying mDNS implementation, used when a
	// discovered record carries no addresses and a lookup is needed.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// ResolveTimeout bounds each Resolve call.
	// If zero, DefaultResolveTimeout is used.
	ResolveTimeout time.Duration

	// Clock drives the resolve timeout. If nil, the wall clock is used.
	Clock clock.Clock

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// AddressResolver resolves a discovered service record to a concrete IPv4
// address.
type AddressResolver struct {
	config   AddressResolverConfig
	resolver MDNSResolver
	clock    clock.Clock
	log      logging.LeveledLogger
}

// NewAddressResolver creates a new AddressResolver with the given configuration.
func NewAddressResolver(config AddressResolverConfig) (*AddressResolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.ResolveTimeout == 0 {
		config.ResolveTimeout = DefaultResolveTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	r := &AddressResolver{
		config:   config,
		resolver: resolver,
		clock:    config.Clock,
	}

	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("resolver")
	}

	return r, nil
}

// Resolve selects an IPv4 address for the discovered service. If the record
// already carries address records the selection is immediate; otherwise a
// bounded mDNS lookup fills them in first.
func (r *AddressResolver) Resolve(ctx context.Context, svc *DiscoveredService) (net.IP, error) {
	if ip, err := SelectIPv4(svc.Addrs); err == nil {
		return ip, nil
	}

	lookupCtx, cancel := r.clock.WithTimeout(ctx, r.config.ResolveTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		if err := r.resolver.Lookup(lookupCtx, svc.Name, svc.Type.registerString(), normalizeDomain(svc.Domain), entries); err != nil && r.log != nil {
			r.log.Warnf("lookup failed: %v", err)
		}
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, ErrServiceNotFound
			}
			if entry == nil {
				continue
			}
			filled := entryToService(entry, svc.Type, svc.Domain)
			ip, err := SelectIPv4(filled.Addrs)
			if err != nil {
				// Keep listening; a later entry may carry an
				// IPv4 record.
				continue
			}
			if r.log != nil {
				r.log.Infof("resolved %q to %s", svc.Name, ip)
			}
			return ip, nil
		case <-lookupCtx.Done():
			if ctx.Err() != nil {
				return nil, ErrCanceled
			}
			return nil, ErrTimeout
		}
	}
}
