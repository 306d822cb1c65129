package transport

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultPort is the port used when a discovery-initiated connection does
// not supply one.
const DefaultPort = 1024

// MaxDatagramSize bounds a single payload. Each send is one complete
// datagram; there is no further framing.
const MaxDatagramSize = 65507

// MessageHandler is called for each complete inbound datagram.
// Implementations should process payloads quickly or dispatch to a goroutine
// to avoid blocking the read loop.
type MessageHandler func(payload string)

// StateHandler is called on connection state changes. err is non-nil only
// for StateFailed.
type StateHandler func(state State, err error)

// Factory creates datagram connections.
// Implementations can provide real network connections or virtual pipes for
// testing.
type Factory interface {
	// Dial opens a connected datagram socket to host:port.
	Dial(host string, port int) (net.Conn, error)
}

// UDPFactory dials real UDP sockets.
type UDPFactory struct{}

// Dial implements Factory.
func (UDPFactory) Dial(host string, port int) (net.Conn, error) {
	return net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// Config configures a Conn.
type Config struct {
	// Host is the peer host. Required.
	Host string

	// Port is the peer port (default: DefaultPort).
	Port int

	// Factory creates the underlying socket. If nil, UDPFactory is used.
	Factory Factory

	// MessageHandler is called for each inbound datagram. Required.
	MessageHandler MessageHandler

	// StateHandler is called on readiness, failure, and close.
	StateHandler StateHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Conn is one datagram connection to a peer.
//
// Opening is asynchronous: Start returns immediately and readiness arrives
// via the state callback. The read loop is re-armed for every datagram until
// the connection is closed or fails.
type Conn struct {
	config  Config
	factory Factory
	handler MessageHandler
	onState StateHandler
	log     logging.LeveledLogger

	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	conn    net.Conn
	state   State
	started bool
	closed  bool
}

// NewConn validates the configuration and creates a connection in StateIdle.
// Validation is explicit and happens before any I/O.
func NewConn(config Config) (*Conn, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}
	if config.Host == "" {
		return nil, ErrInvalidAddress
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, ErrInvalidPort
	}

	factory := config.Factory
	if factory == nil {
		factory = UDPFactory{}
	}

	c := &Conn{
		config:  config,
		factory: factory,
		handler: config.MessageHandler,
		onState: config.StateHandler,
		closeCh: make(chan struct{}),
		state:   StateIdle,
	}

	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}

	return c, nil
}

// Start opens the connection. Readiness or failure is reported via the state
// callback; Start itself only fails on reuse.
func (c *Conn) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.open()

	return nil
}

// open dials the peer and, on success, arms the read loop.
func (c *Conn) open() {
	defer c.wg.Done()

	conn, err := c.factory.Dial(c.config.Host, c.config.Port)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("dial %s:%d failed: %v (%s)", c.config.Host, c.config.Port, err, ReasonFromError(err))
		}
		c.setState(StateFailed, err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("connected to %v", conn.RemoteAddr())
	}
	c.setState(StateReady, nil)

	c.wg.Add(1)
	go c.readLoop(conn)
}

// Send writes one datagram. The write completes asynchronously; completion
// (if non-nil) receives nil on success or the transport error.
func (c *Conn) Send(payload string, completion func(error)) {
	done := func(err error) {
		if completion != nil {
			completion(err)
		}
	}

	if len(payload) > MaxDatagramSize {
		done(ErrMessageTooLarge)
		return
	}

	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	if !closed && conn != nil {
		// Register with the wait group before releasing the lock so
		// Close cannot start waiting between the check and the add.
		c.wg.Add(1)
	}
	c.mu.RUnlock()

	if closed {
		done(ErrClosed)
		return
	}
	if conn == nil {
		done(ErrNotReady)
		return
	}

	go func() {
		defer c.wg.Done()
		_, err := conn.Write([]byte(payload))
		if err != nil && c.log != nil {
			c.log.Warnf("send failed: %v (%s)", err, ReasonFromError(err))
		}
		done(err)
	}()
}

// Close tears down the connection and unblocks the read loop.
// A second Close returns ErrClosed; the teardown itself runs once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.closeCh)

	if conn != nil {
		// Short deadline to unblock a pending read before closing.
		conn.SetReadDeadline(time.Now())
		conn.Close()
	}
	c.wg.Wait()

	if c.log != nil {
		c.log.Info("connection closed")
	}
	c.setState(StateClosed, nil)

	return nil
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RemoteAddr returns the peer address, or nil before readiness.
func (c *Conn) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// readLoop reads datagrams and re-arms the read until close or failure.
func (c *Conn) readLoop(conn net.Conn) {
	defer c.wg.Done()

	buf := make([]byte, MaxDatagramSize)

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-c.closeCh:
				return
			default:
			}
			if c.log != nil {
				c.log.Warnf("read error: %v (%s)", err, ReasonFromError(err))
			}
			c.setState(StateFailed, err)
			return
		}

		if n == 0 {
			continue
		}

		payload := string(buf[:n])
		if c.log != nil {
			c.log.Debugf("received %d bytes", n)
		}
		c.handler(payload)
	}
}

// setState records the state and notifies the handler outside the lock.
func (c *Conn) setState(state State, err error) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	// A failure after local close is not reported.
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	if c.onState != nil {
		c.onState(state, err)
	}
}
