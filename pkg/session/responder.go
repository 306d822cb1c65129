package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/backkem/dscv/pkg/discovery"
	"github.com/backkem/dscv/pkg/transport"
	"github.com/backkem/dscv/pkg/wire"
	"github.com/pion/logging"
)

// ResponderConfig holds configuration for a Responder.
type ResponderConfig struct {
	// DeviceName identifies this endpoint. Required.
	DeviceName string

	// ServiceType is advertised via mDNS (default: DefaultServiceType).
	ServiceType discovery.ServiceType

	// Domain is the mDNS registration domain ("" selects the default).
	Domain string

	// Port is the UDP port to listen on (default: transport.DefaultPort).
	// Ignored when PacketConn is provided.
	Port int

	// Advertise controls whether the service is published via mDNS.
	Advertise bool

	// PacketConn is an optional pre-existing socket, for tests.
	PacketConn net.PacketConn

	// ServerFactory is the mDNS registration factory, for tests.
	ServerFactory discovery.MDNSServerFactory

	// OnMessage is invoked for every opaque application payload. Optional.
	OnMessage func(payload string, from net.Addr)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Responder is the answering side of the protocol. It listens on a datagram
// socket, optionally advertises itself over mDNS, replies to handshake
// requests with a handshake confirmation, and acknowledges application
// payloads so the initiating side's liveness tracking sees a healthy link.
type Responder struct {
	config     ResponderConfig
	pc         net.PacketConn
	advertiser *discovery.Advertiser
	log        logging.LeveledLogger

	closeCh chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	peer   net.Addr
	closed bool
}

// NewResponder creates a Responder bound to its socket. Call Start to begin
// serving.
func NewResponder(config ResponderConfig) (*Responder, error) {
	if config.DeviceName == "" {
		return nil, ErrDeviceNameRequired
	}
	if config.ServiceType == "" {
		config.ServiceType = DefaultServiceType
	}
	if err := config.ServiceType.Validate(); err != nil {
		return nil, err
	}
	if config.Port == 0 {
		config.Port = transport.DefaultPort
	}

	pc := config.PacketConn
	if pc == nil {
		var err error
		pc, err = net.ListenPacket("udp", fmt.Sprintf(":%d", config.Port))
		if err != nil {
			return nil, err
		}
	}

	r := &Responder{
		config:  config,
		pc:      pc,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("responder")
	}

	return r, nil
}

// Addr returns the local address the responder is listening on.
func (r *Responder) Addr() net.Addr {
	return r.pc.LocalAddr()
}

// Start begins serving and, if configured, advertising.
func (r *Responder) Start() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return transport.ErrClosed
	}
	r.mu.Unlock()

	if r.config.Advertise {
		port := r.config.Port
		if udpAddr, ok := r.pc.LocalAddr().(*net.UDPAddr); ok {
			port = udpAddr.Port
		}
		r.advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			InstanceName:  r.config.DeviceName,
			ServerFactory: r.config.ServerFactory,
			LoggerFactory: r.config.LoggerFactory,
		})
		if err := r.advertiser.Start(r.config.ServiceType, r.config.Domain, port); err != nil {
			return err
		}
	}

	if r.log != nil {
		r.log.Infof("listening on %v", r.pc.LocalAddr())
	}

	r.wg.Add(1)
	go r.serve()

	return nil
}

// serve is the re-armed read loop answering protocol messages.
func (r *Responder) serve() {
	defer r.wg.Done()

	buf := make([]byte, transport.MaxDatagramSize)

	for {
		select {
		case <-r.closeCh:
			return
		default:
		}

		n, addr, err := r.pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-r.closeCh:
				return
			default:
				if r.log != nil {
					r.log.Warnf("read error: %v", err)
				}
				continue
			}
		}
		if n == 0 {
			continue
		}

		r.handle(string(buf[:n]), addr)
	}
}

// handle answers one inbound datagram.
func (r *Responder) handle(payload string, from net.Addr) {
	switch {
	case wire.IsDiscover(payload):
		if name, ok := wire.DeviceName(payload); ok && r.log != nil {
			r.log.Infof("handshake request from %q at %v", name, from)
		}
		r.mu.Lock()
		r.peer = from
		r.mu.Unlock()
		r.send(wire.TokenShake, from)
	case wire.IsDisconnect(payload):
		// Drop the peer without echoing a disconnect back.
		r.mu.Lock()
		if r.peer != nil && r.peer.String() == from.String() {
			r.peer = nil
		}
		r.mu.Unlock()
		if r.log != nil {
			r.log.Infof("peer %v disconnected", from)
		}
	case wire.IsShake(payload), wire.IsAck(payload):
		// Control acknowledgements need no reply.
	default:
		r.send(wire.TokenAck, from)
		if r.config.OnMessage != nil {
			r.config.OnMessage(payload, from)
		}
	}
}

// send writes one datagram, logging failures.
func (r *Responder) send(payload string, to net.Addr) {
	if _, err := r.pc.WriteTo([]byte(payload), to); err != nil && r.log != nil {
		r.log.Warnf("send to %v failed: %v", to, err)
	}
}

// Close stops serving, withdraws the advertisement, and sends one disconnect
// to the active peer. Safe to call more than once.
func (r *Responder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return transport.ErrClosed
	}
	r.closed = true
	peer := r.peer
	r.peer = nil
	r.mu.Unlock()

	if peer != nil {
		r.send(wire.TokenDisconnect, peer)
	}
	if r.advertiser != nil {
		r.advertiser.Shutdown()
	}

	close(r.closeCh)
	r.pc.SetReadDeadline(time.Now())
	r.pc.Close()
	r.wg.Wait()

	if r.log != nil {
		r.log.Info("responder closed")
	}
	return nil
}
