package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// Pipe provides bidirectional in-memory datagram communication between two
// endpoints. It wraps pion's test.Bridge and adds loss simulation, so timer
// and retry behavior can be exercised without real network I/O.
//
// By default the pipe delivers queued messages from a background goroutine.
// Disable AutoProcess for manual, deterministic delivery via Tick/Process.
type Pipe struct {
	bridge *test.Bridge

	mu          sync.RWMutex
	dropRate    float64
	rng         *rand.Rand
	closed      bool
	autoProcess bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables background message delivery. Default: true.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers messages.
	// Default: 1ms.
	ProcessInterval time.Duration

	// DropRate is the probability of dropping a sent datagram (0.0 - 1.0).
	DropRate float64
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(PipeConfig{AutoProcess: true})
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	interval := config.ProcessInterval
	if interval == 0 {
		interval = time.Millisecond
	}

	p := &Pipe{
		bridge:      test.NewBridge(),
		dropRate:    config.DropRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess: config.AutoProcess,
		stopCh:      make(chan struct{}),
	}

	if p.autoProcess {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-p.stopCh:
					return
				case <-ticker.C:
					p.bridge.Tick()
				}
			}
		}()
	}

	return p
}

// Conn0 returns the connection for endpoint 0.
func (p *Pipe) Conn0() net.Conn {
	return &lossConn{Conn: p.bridge.GetConn0(), pipe: p}
}

// Conn1 returns the connection for endpoint 1.
func (p *Pipe) Conn1() net.Conn {
	return &lossConn{Conn: p.bridge.GetConn1(), pipe: p}
}

// SetDropRate configures the probability of dropping a sent datagram.
func (p *Pipe) SetDropRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropRate = rate
}

// drop decides whether to discard one datagram.
func (p *Pipe) drop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropRate > 0 && p.rng.Float64() < p.dropRate
}

// Tick delivers one queued datagram in each direction.
// Returns the number delivered.
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued datagrams. Returns the number delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// lossConn applies the pipe's drop rate on the send path. A dropped write
// reports success, matching real datagram semantics where loss is silent.
type lossConn struct {
	net.Conn
	pipe *Pipe
}

func (c *lossConn) Write(b []byte) (int, error) {
	if c.pipe.drop() {
		return len(b), nil
	}
	return c.Conn.Write(b)
}

// PipeFactory is a Factory handing out one side of a pipe, for wiring a Conn
// to a virtual network in tests.
type PipeFactory struct {
	mu   sync.Mutex
	conn net.Conn
	err  error
}

// NewPipeFactory creates a factory that returns the given connection once.
func NewPipeFactory(conn net.Conn) *PipeFactory {
	return &PipeFactory{conn: conn}
}

// NewFailingFactory creates a factory whose Dial always fails with err.
func NewFailingFactory(err error) *PipeFactory {
	return &PipeFactory{err: err}
}

// Dial implements Factory. A second dial fails because the single side has
// already been handed out.
func (f *PipeFactory) Dial(host string, port int) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.conn == nil {
		return nil, ErrClosed
	}
	conn := f.conn
	f.conn = nil
	return conn, nil
}
