// dscv-dial opens a datagram session to a responder, either by browsing mDNS
// for an advertised service or by dialing a known host directly. Once
// connected, every line read from stdin is sent as one payload.
//
// Usage:
//
//	dscv-dial [options]
//
// Options:
//
//	-name     Device name sent in the handshake (default: "dscv-dial")
//	-service  Service type to browse for (default: "_dscv._udp.")
//	-host     Peer host; skips discovery when set
//	-port     Peer port (default: 1024 when -host is set)
//	-timeout  Discovery search timeout (default: 10s)
//	-v        Verbose logging
//
// Example:
//
//	dscv-dial -name monitor-1 -service "_sensors._udp."
//	dscv-dial -host 192.168.1.20 -port 4820
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/dscv/pkg/discovery"
	"github.com/backkem/dscv/pkg/session"
	"github.com/pion/logging"
)

// consoleDelegate prints session notifications to the log.
type consoleDelegate struct {
	connected chan struct{}
	done      chan struct{}
}

func newConsoleDelegate() *consoleDelegate {
	return &consoleDelegate{
		connected: make(chan struct{}, 1),
		done:      make(chan struct{}, 1),
	}
}

func (d *consoleDelegate) OnConnectionState(state session.State, err error) {
	if err != nil {
		log.Printf("state: %s (%v)", state, err)
	} else {
		log.Printf("state: %s", state)
	}
	switch state {
	case session.StateConnected:
		select {
		case d.connected <- struct{}{}:
		default:
		}
	case session.StateDisconnected, session.StateFailed:
		select {
		case d.done <- struct{}{}:
		default:
		}
	}
}

func (d *consoleDelegate) OnConnectionStrength(percent float64) {
	log.Printf("strength: %.0f%%", percent)
}

func (d *consoleDelegate) OnMessage(payload string) {
	log.Printf("message: %s", payload)
}

func main() {
	name := flag.String("name", "dscv-dial", "device name sent in the handshake")
	service := flag.String("service", string(session.DefaultServiceType), "service type to browse for")
	host := flag.String("host", "", "peer host (skips discovery)")
	port := flag.Int("port", 0, "peer port")
	timeout := flag.Duration("timeout", 10*time.Second, "discovery search timeout")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}

	delegate := newConsoleDelegate()
	s, err := session.NewSession(session.Config{
		DeviceName:    *name,
		ServiceType:   discovery.ServiceType(*service),
		Port:          *port,
		SearchTimeout: *timeout,
		Delegate:      delegate,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	if *host != "" {
		err = s.Connect(*host, *port)
	} else {
		err = s.Discover()
	}
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-delegate.connected:
	case <-delegate.done:
		log.Fatalf("Session did not connect: %v", s.Err())
	case <-ctx.Done():
		s.Close()
		return
	}

	// Forward stdin lines as payloads until EOF, teardown, or interrupt.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				s.Close()
				return
			}
			if line == "" {
				continue
			}
			if err := s.Send(line); err != nil {
				log.Printf("send failed: %v", err)
			}
		case <-delegate.done:
			return
		case <-ctx.Done():
			log.Println("Shutting down...")
			s.Close()
			return
		}
	}
}
