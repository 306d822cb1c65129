package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/dscv/pkg/discovery"
	"github.com/backkem/dscv/pkg/link"
	"github.com/backkem/dscv/pkg/transport"
	"github.com/backkem/dscv/pkg/wire"
	"github.com/benbjohnson/clock"
	"github.com/pion/logging"
)

// DefaultServiceType is the service type sessions browse for when none is
// configured.
const DefaultServiceType discovery.ServiceType = "_dscv._udp."

// DefaultAckWait is the time to wait for liveness proof after a send before
// counting a missed acknowledgement.
const DefaultAckWait = 2 * time.Second

// DefaultMaxShakeAttempts is the total number of unacknowledged handshake
// attempts before the session fails.
const DefaultMaxShakeAttempts = 5

// Delegate receives session notifications. Calls arrive on background
// goroutines; implementations must be safe for that or redispatch.
type Delegate interface {
	// OnConnectionState is invoked on every state change. err is non-nil
	// for StateFailed and for a teardown forced by low link strength.
	OnConnectionState(state State, err error)

	// OnConnectionStrength is invoked on every strength recomputation.
	OnConnectionStrength(percent float64)

	// OnMessage is invoked for every opaque application payload.
	OnMessage(payload string)
}

// Config holds configuration for a Session.
type Config struct {
	// DeviceName identifies this endpoint in handshake requests. Required.
	DeviceName string

	// ServiceType is browsed for by Discover (default: DefaultServiceType).
	ServiceType discovery.ServiceType

	// Domain is the mDNS domain ("" selects the default).
	Domain string

	// Port overrides the advertised port for discovery-initiated
	// connections. Zero keeps the advertised port, falling back to
	// transport.DefaultPort when the advertisement carries none.
	Port int

	// SearchTimeout bounds Discover's browse.
	SearchTimeout time.Duration

	// AckWait is the ack-wait timer duration (default: DefaultAckWait).
	AckWait time.Duration

	// MaxShakeAttempts is the handshake attempt bound
	// (default: DefaultMaxShakeAttempts).
	MaxShakeAttempts int

	// Delegate receives notifications. Optional.
	Delegate Delegate

	// Clock drives all session timers. If nil, the wall clock is used.
	Clock clock.Clock

	// TransportFactory creates the datagram socket (default: real UDP).
	TransportFactory transport.Factory

	// MDNSResolver is the mDNS implementation for discovery.
	// If nil, the default zeroconf resolver is used on first Discover.
	MDNSResolver discovery.MDNSResolver

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session is a single logical session: at most one discovery search and one
// transport connection at a time. Starting a new Discover or Connect
// invalidates any prior attempt; Close tears everything down.
type Session struct {
	config   Config
	clk      clock.Clock
	log      logging.LeveledLogger
	delegate Delegate
	monitor  *link.Monitor

	mu           sync.Mutex
	state        State
	lastErr      error
	epoch        uint64
	conn         *transport.Conn
	searchCancel context.CancelFunc
	browser      *discovery.Browser
	resolver     *discovery.AddressResolver

	// ackTimers holds outstanding ack-wait timers keyed by a generation
	// token. The send path adds entries, the receive and timeout paths
	// remove them; a timer whose token is gone was canceled and its
	// firing is ignored.
	ackTimers     map[uint64]*clock.Timer
	nextAckID     uint64
	shakeAttempts int
}

// NewSession creates a Session owned by the caller. It starts disconnected;
// no I/O happens until Discover or Connect.
func NewSession(config Config) (*Session, error) {
	if config.DeviceName == "" {
		return nil, ErrDeviceNameRequired
	}
	if config.ServiceType == "" {
		config.ServiceType = DefaultServiceType
	}
	if err := config.ServiceType.Validate(); err != nil {
		return nil, err
	}
	if config.AckWait == 0 {
		config.AckWait = DefaultAckWait
	}
	if config.MaxShakeAttempts == 0 {
		config.MaxShakeAttempts = DefaultMaxShakeAttempts
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	s := &Session{
		config:    config,
		clk:       config.Clock,
		delegate:  config.Delegate,
		monitor:   link.NewMonitor(config.LoggerFactory),
		state:     StateDisconnected,
		ackTimers: make(map[uint64]*clock.Timer),
	}

	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}

	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that put the session into StateFailed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Strength returns the current link strength percentage.
func (s *Session) Strength() float64 {
	return s.monitor.Strength()
}

// Discover searches for an advertised peer, resolves it to an IPv4 address,
// and connects. Any attempt already in flight is discarded first.
func (s *Session) Discover() error {
	s.mu.Lock()
	if err := s.ensureDiscoveryLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.resetLocked()
	epoch := s.epoch
	ctx, cancel := context.WithCancel(context.Background())
	s.searchCancel = cancel
	notify := s.setStateLocked(StateConnecting, nil)
	s.mu.Unlock()
	notify()

	go s.runDiscover(epoch, ctx)
	return nil
}

// Connect opens a datagram connection to a known peer, skipping discovery.
// Any attempt already in flight is discarded first.
func (s *Session) Connect(host string, port int) error {
	s.mu.Lock()
	s.resetLocked()
	epoch := s.epoch
	notify := s.setStateLocked(StateConnecting, nil)
	s.mu.Unlock()
	notify()

	if err := s.open(epoch, host, port); err != nil {
		s.fail(epoch, err)
		return err
	}
	return nil
}

// Send transmits one opaque application payload. Delivery is not guaranteed;
// an unacknowledged send only lowers the link strength.
func (s *Session) Send(payload string) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	epoch := s.epoch
	conn := s.conn
	s.mu.Unlock()

	conn.Send(payload, func(err error) {
		if err != nil {
			s.fail(epoch, err)
			return
		}
		s.mu.Lock()
		if epoch == s.epoch {
			s.monitor.MarkSent()
			s.armAckTimerLocked(epoch)
		}
		s.mu.Unlock()
	})
	return nil
}

// Close tears the session down: cancels all pending timers and the discovery
// search, sends one disconnect datagram to the peer, cancels the transport,
// and settles in StateDisconnected. Closing an already quiescent session is
// a no-op.
func (s *Session) Close() {
	s.closeWith(true, StateDisconnected, nil)
}

// ensureDiscoveryLocked lazily constructs the browser and resolver so
// sessions that only ever Connect never touch the mDNS stack.
func (s *Session) ensureDiscoveryLocked() error {
	if s.browser != nil {
		return nil
	}
	browser, err := discovery.NewBrowser(discovery.BrowserConfig{
		MDNSResolver:  s.config.MDNSResolver,
		SearchTimeout: s.config.SearchTimeout,
		Clock:         s.clk,
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		return err
	}
	resolver, err := discovery.NewAddressResolver(discovery.AddressResolverConfig{
		MDNSResolver:  s.config.MDNSResolver,
		Clock:         s.clk,
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		return err
	}
	s.browser = browser
	s.resolver = resolver
	return nil
}

// runDiscover performs the browse and resolve legs of a discovery-initiated
// connection attempt.
func (s *Session) runDiscover(epoch uint64, ctx context.Context) {
	svc, err := s.browser.Search(ctx, s.config.ServiceType, s.config.Domain)
	if err != nil {
		if err == discovery.ErrCanceled {
			// Caller-initiated stop; the timeout callback must not
			// raise a failure after it.
			return
		}
		s.fail(epoch, ErrDiscoverTimeout)
		return
	}

	ip, err := s.resolver.Resolve(ctx, svc)
	if err != nil {
		if err == discovery.ErrCanceled {
			return
		}
		s.fail(epoch, fmt.Errorf("session: resolving %q: %w", svc.Name, err))
		return
	}

	port := s.config.Port
	if port == 0 {
		port = svc.Port
	}
	if port == 0 {
		port = transport.DefaultPort
	}

	if s.log != nil {
		s.log.Infof("discovered %q, connecting to %s:%d", svc.Name, ip, port)
	}

	if err := s.open(epoch, ip.String(), port); err != nil {
		s.fail(epoch, err)
	}
}

// open creates and starts the transport for the attempt identified by epoch.
func (s *Session) open(epoch uint64, host string, port int) error {
	conn, err := transport.NewConn(transport.Config{
		Host:    host,
		Port:    port,
		Factory: s.config.TransportFactory,
		MessageHandler: func(payload string) {
			s.onMessage(epoch, payload)
		},
		StateHandler: func(state transport.State, err error) {
			s.onTransportState(epoch, state, err)
		},
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		go conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	return conn.Start()
}

// onTransportState handles readiness and failure reports from the transport.
func (s *Session) onTransportState(epoch uint64, state transport.State, err error) {
	switch state {
	case transport.StateReady:
		s.mu.Lock()
		if epoch != s.epoch || s.state != StateConnecting {
			s.mu.Unlock()
			return
		}
		s.shakeAttempts = 1
		conn := s.conn
		s.mu.Unlock()
		s.sendShake(epoch, conn)
	case transport.StateFailed:
		if s.log != nil {
			s.log.Warnf("transport failed: %v (%s)", err, transport.ReasonFromError(err))
		}
		s.fail(epoch, err)
	}
}

// sendShake transmits one handshake request and arms its ack-wait timer.
func (s *Session) sendShake(epoch uint64, conn *transport.Conn) {
	if s.log != nil {
		s.log.Debugf("handshake attempt %d", s.currentShakeAttempt())
	}
	conn.Send(wire.Discover(s.config.DeviceName), func(err error) {
		if err != nil {
			s.fail(epoch, err)
			return
		}
		s.mu.Lock()
		if epoch == s.epoch {
			s.monitor.MarkSent()
			s.armAckTimerLocked(epoch)
		}
		s.mu.Unlock()
	})
}

func (s *Session) currentShakeAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shakeAttempts
}

// armAckTimerLocked starts one ack-wait timer tagged with a generation token.
// The token is the cancellation handle: a fired timer whose token was removed
// by the receive path does nothing.
func (s *Session) armAckTimerLocked(epoch uint64) {
	id := s.nextAckID
	s.nextAckID++
	s.ackTimers[id] = s.clk.AfterFunc(s.config.AckWait, func() {
		s.onAckTimeout(epoch, id)
	})
}

// drainAckTimersLocked cancels every outstanding ack-wait timer. The map is
// replaced wholesale so a concurrent send path appends into a fresh map
// rather than one being drained.
func (s *Session) drainAckTimersLocked() {
	timers := s.ackTimers
	s.ackTimers = make(map[uint64]*clock.Timer)
	for _, t := range timers {
		t.Stop()
	}
}

// onAckTimeout handles an ack-wait expiry without an inbound message.
func (s *Session) onAckTimeout(epoch uint64, id uint64) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if _, ok := s.ackTimers[id]; !ok {
		// Canceled by an inbound message that raced the firing.
		s.mu.Unlock()
		return
	}
	delete(s.ackTimers, id)

	switch s.state {
	case StateConnecting:
		if s.shakeAttempts >= s.config.MaxShakeAttempts {
			notify := s.closeInnerLocked(false, StateFailed, ErrShakeNoResponse)
			s.mu.Unlock()
			notify()
			return
		}
		s.shakeAttempts++
		conn := s.conn
		s.mu.Unlock()
		s.sendShake(epoch, conn)
	case StateConnected:
		strength := s.monitor.RecordAck(false)
		if link.Dead(strength) {
			if s.log != nil {
				s.log.Warnf("strength %.1f below threshold, closing", strength)
			}
			notify := s.closeInnerLocked(true, StateDisconnected, ErrLowStrength)
			s.mu.Unlock()
			s.notifyStrength(strength)
			notify()
			return
		}
		s.mu.Unlock()
		s.notifyStrength(strength)
	default:
		s.mu.Unlock()
	}
}

// onMessage handles one inbound datagram. Any inbound message is implicit
// liveness proof: processing and ack-timer cancellation happen atomically
// under the session lock, so a timer that fires just after a message arrives
// cannot record a stale failure.
func (s *Session) onMessage(epoch uint64, payload string) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}

	s.monitor.MarkReceived()
	s.drainAckTimersLocked()

	switch {
	case wire.IsDisconnect(payload):
		// Local close without echoing a disconnect back.
		notify := s.closeInnerLocked(false, StateDisconnected, nil)
		s.mu.Unlock()
		notify()
	case wire.IsShake(payload):
		if s.state == StateConnecting {
			s.shakeAttempts = 0
			s.monitor.SetActive(true)
			notify := s.setStateLocked(StateConnected, nil)
			s.mu.Unlock()
			notify()
			return
		}
		strength := s.recordAckLocked()
		s.mu.Unlock()
		s.notifyStrength(strength)
	default:
		strength := s.recordAckLocked()
		opaque := !wire.IsControl(payload)
		s.mu.Unlock()
		s.notifyStrength(strength)
		if opaque && s.delegate != nil {
			s.delegate.OnMessage(payload)
		}
	}
}

// recordAckLocked records a successful liveness sample when connected.
// Returns a negative value when no sample was recorded.
func (s *Session) recordAckLocked() float64 {
	if s.state != StateConnected {
		return -1
	}
	return s.monitor.RecordAck(true)
}

// notifyStrength reports a recomputed strength to the delegate.
func (s *Session) notifyStrength(strength float64) {
	if strength < 0 {
		return
	}
	if s.delegate != nil {
		s.delegate.OnConnectionStrength(strength)
	}
}

// fail moves the attempt identified by epoch into StateFailed.
func (s *Session) fail(epoch uint64, err error) {
	s.mu.Lock()
	if epoch != s.epoch || s.state.IsQuiescent() {
		s.mu.Unlock()
		return
	}
	notify := s.closeInnerLocked(false, StateFailed, err)
	s.mu.Unlock()
	notify()
}

// closeWith is the shared teardown entry point for public Close.
func (s *Session) closeWith(sendDisconnect bool, final State, err error) {
	s.mu.Lock()
	if s.state.IsQuiescent() {
		s.mu.Unlock()
		return
	}
	notify := s.closeInnerLocked(sendDisconnect, final, err)
	s.mu.Unlock()
	notify()
}

// closeInnerLocked cancels timers, discovery, and the transport, settles the
// final state, and returns the deferred notification. The epoch bump makes
// every callback from the torn-down attempt stale.
func (s *Session) closeInnerLocked(sendDisconnect bool, final State, err error) func() {
	s.epoch++
	s.drainAckTimersLocked()
	if s.searchCancel != nil {
		s.searchCancel()
		s.searchCancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.monitor.SetActive(false)
	s.shakeAttempts = 0
	s.state = final
	s.lastErr = err

	delegate := s.delegate
	return func() {
		if conn != nil {
			if sendDisconnect {
				// The transport is cancelled only after the
				// disconnect datagram went out (or its write
				// failed).
				conn.Send(wire.TokenDisconnect, func(error) {
					go conn.Close()
				})
			} else {
				go conn.Close()
			}
		}
		if delegate != nil {
			delegate.OnConnectionState(final, err)
		}
	}
}

// resetLocked discards the attempt in flight to make room for a fresh one:
// pending timers, search, transport, and quality history all go.
func (s *Session) resetLocked() {
	s.epoch++
	s.drainAckTimersLocked()
	if s.searchCancel != nil {
		s.searchCancel()
		s.searchCancel = nil
	}
	if s.conn != nil {
		conn := s.conn
		s.conn = nil
		go conn.Close()
	}
	s.monitor.SetActive(false)
	s.monitor.Reset()
	s.shakeAttempts = 0
	s.lastErr = nil
}

// setStateLocked records a state change and returns the deferred delegate
// notification, so it can run outside the lock.
func (s *Session) setStateLocked(state State, err error) func() {
	if s.state == state {
		return func() {}
	}
	s.state = state
	s.lastErr = err
	delegate := s.delegate
	if s.log != nil {
		s.log.Infof("state %s", state)
	}
	return func() {
		if delegate != nil {
			delegate.OnConnectionState(state, err)
		}
	}
}
