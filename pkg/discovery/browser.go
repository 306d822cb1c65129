package discovery

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultSearchTimeout is the default bound on a browse operation.
const DefaultSearchTimeout = 10 * time.Second

// DiscoveredService is an ephemeral record for a service found by a browse.
// It is created on a discovery event, consumed by the AddressResolver, and
// discarded once a connection attempt starts.
type DiscoveredService struct {
	// Name is the DNS-SD instance name.
	Name string

	// Type is the service type the record was found under.
	Type ServiceType

	// Domain is the registration domain the record was found in.
	Domain string

	// HostName is the target host name.
	HostName string

	// Port is the advertised service port.
	Port int

	// Addrs contains the raw address records, IPv4 and IPv6 mixed,
	// in the order the responder offered them.
	Addrs []net.IP
}

// MDNSResolver is the interface to the underlying mDNS browse/lookup
// machinery. Allows injecting a mock in tests.
type MDNSResolver interface {
	// Browse browses for services of the given type, streaming found
	// entries until the context is done.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// BrowserConfig holds configuration for the Browser.
type BrowserConfig struct {
	// MDNSResolver is the underlying mDNS implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// SearchTimeout bounds each Search call.
	// If zero, DefaultSearchTimeout is used.
	SearchTimeout time.Duration

	// Clock drives the search timeout. If nil, the wall clock is used.
	Clock clock.Clock

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Browser performs bounded-duration searches for advertised services.
type Browser struct {
	config   BrowserConfig
	resolver MDNSResolver
	clock    clock.Clock
	log      logging.LeveledLogger
}

// NewBrowser creates a new Browser with the given configuration.
func NewBrowser(config BrowserConfig) (*Browser, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.SearchTimeout == 0 {
		config.SearchTimeout = DefaultSearchTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	b := &Browser{
		config:   config,
		resolver: resolver,
		clock:    config.Clock,
	}

	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("discovery")
	}

	return b, nil
}

// Search begins a browse for the given service type and returns the first
// candidate found. Multiple candidates may be advertised; the first wins.
//
// If no candidate arrives before the configured timeout, the browse is
// aborted and ErrTimeout is returned. Cancelling ctx stops the search and
// returns ErrCanceled; a caller-initiated stop after a candidate was already
// returned, or after the timeout already fired, has no further effect.
func (b *Browser) Search(ctx context.Context, serviceType ServiceType, domain string) (*DiscoveredService, error) {
	if err := serviceType.Validate(); err != nil {
		return nil, err
	}
	domain = normalizeDomain(domain)

	searchCtx, cancel := b.clock.WithTimeout(ctx, b.config.SearchTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		if err := b.resolver.Browse(searchCtx, serviceType.registerString(), domain, entries); err != nil && b.log != nil {
			b.log.Warnf("browse failed: %v", err)
		}
	}()

	if b.log != nil {
		b.log.Debugf("searching for %s in %s", serviceType, domain)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				// Browse returned without a candidate; wait out
				// the timeout or cancellation.
				<-searchCtx.Done()
				return nil, b.searchErr(ctx)
			}
			if entry == nil {
				continue
			}
			svc := entryToService(entry, serviceType, domain)
			if b.log != nil {
				b.log.Infof("found %q at %s:%d", svc.Name, svc.HostName, svc.Port)
			}
			return svc, nil
		case <-searchCtx.Done():
			return nil, b.searchErr(ctx)
		}
	}
}

// searchErr distinguishes a caller-initiated stop from the timeout bound.
func (b *Browser) searchErr(parent context.Context) error {
	if parent.Err() != nil {
		return ErrCanceled
	}
	return ErrTimeout
}

// entryToService converts a zeroconf.ServiceEntry to a DiscoveredService.
func entryToService(entry *zeroconf.ServiceEntry, serviceType ServiceType, domain string) *DiscoveredService {
	var addrs []net.IP
	addrs = append(addrs, entry.AddrIPv6...)
	addrs = append(addrs, entry.AddrIPv4...)

	return &DiscoveredService{
		Name:     entry.Instance,
		Type:     serviceType,
		Domain:   domain,
		HostName: entry.HostName,
		Port:     entry.Port,
		Addrs:    addrs,
	}
}
