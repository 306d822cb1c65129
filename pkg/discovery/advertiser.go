package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// MDNSServer is the interface for an active mDNS service registration.
// Allows injecting a fake in tests.
type MDNSServer interface {
	// Shutdown stops the registration.
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	// Register publishes a new service registration.
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

// zeroconfServerFactory is the production implementation using grandcat/zeroconf.
type zeroconfServerFactory struct{}

func (z *zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// InstanceName is the DNS-SD instance name to advertise.
	// If empty, a random name is generated.
	InstanceName string

	// Interfaces specifies which network interfaces to advertise on.
	// If nil, all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory is the factory for creating mDNS registrations.
	// If nil, the default zeroconf factory is used.
	ServerFactory MDNSServerFactory

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes a DNS-SD service so browsing peers can find it.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu     sync.Mutex
	server MDNSServer
	closed bool
}

// NewAdvertiser creates a new Advertiser with the given configuration.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	factory := config.ServerFactory
	if factory == nil {
		factory = &zeroconfServerFactory{}
	}
	if config.InstanceName == "" {
		config.InstanceName = "dscv-" + uuid.NewString()
	}

	a := &Advertiser{
		config:  config,
		factory: factory,
	}

	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("advertiser")
	}

	return a
}

// Start publishes the service registration for the given type and port.
func (a *Advertiser) Start(serviceType ServiceType, domain string, port int) error {
	if err := serviceType.Validate(); err != nil {
		return err
	}
	if port <= 0 || port > 65535 {
		return ErrInvalidPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		return ErrAlreadyStarted
	}

	server, err := a.factory.Register(
		a.config.InstanceName,
		serviceType.registerString(),
		normalizeDomain(domain),
		port,
		[]string{"txtvers=1"},
		a.config.Interfaces,
	)
	if err != nil {
		return fmt.Errorf("advertiser: register failed: %w", err)
	}
	a.server = server

	if a.log != nil {
		a.log.Infof("advertising %q as %s on port %d", a.config.InstanceName, serviceType, port)
	}

	return nil
}

// Shutdown withdraws the registration. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		if a.log != nil {
			a.log.Info("advertisement withdrawn")
		}
	}
}
