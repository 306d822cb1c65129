package session

import (
	"net"
	"testing"
	"time"

	"github.com/backkem/dscv/pkg/transport"
	"github.com/backkem/dscv/pkg/wire"
)

// startResponder binds a responder to an ephemeral loopback port.
func startResponder(t *testing.T, config ResponderConfig) *Responder {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	config.PacketConn = pc
	if config.DeviceName == "" {
		config.DeviceName = "responder-test"
	}

	r, err := NewResponder(config)
	if err != nil {
		pc.Close()
		t.Fatalf("NewResponder() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// dialClient opens a raw UDP client socket pointed at the responder.
func dialClient(t *testing.T, r *Responder) net.Conn {
	t.Helper()
	conn, err := net.Dial("udp", r.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn net.Conn) string {
	t.Helper()
	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	return string(buf[:n])
}

func expectNoReply(t *testing.T, conn net.Conn, wait time.Duration) {
	t.Helper()
	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(wait))
	n, err := conn.Read(buf)
	if err == nil {
		t.Fatalf("unexpected reply %q", string(buf[:n]))
	}
	if nerr, ok := err.(net.Error); !ok || !nerr.Timeout() {
		t.Fatalf("read error = %v, want timeout", err)
	}
}

func TestNewResponderValidation(t *testing.T) {
	if _, err := NewResponder(ResponderConfig{}); err != ErrDeviceNameRequired {
		t.Errorf("NewResponder() error = %v, want %v", err, ErrDeviceNameRequired)
	}
}

func TestResponderProtocol(t *testing.T) {
	messages := make(chan string, 8)
	r := startResponder(t, ResponderConfig{
		OnMessage: func(payload string, from net.Addr) {
			messages <- payload
		},
	})
	client := dialClient(t, r)

	// A handshake request is answered with a handshake response.
	if _, err := client.Write([]byte(wire.Discover("client"))); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if reply := readReply(t, client); !wire.IsShake(reply) {
		t.Fatalf("handshake reply = %q", reply)
	}

	// An application payload is acknowledged and surfaced.
	if _, err := client.Write([]byte("reading 17")); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if reply := readReply(t, client); !wire.IsAck(reply) {
		t.Fatalf("payload reply = %q", reply)
	}
	select {
	case payload := <-messages:
		if payload != "reading 17" {
			t.Errorf("OnMessage payload = %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnMessage")
	}

	// Acks need no counter-ack; that would ping-pong forever.
	if _, err := client.Write([]byte(wire.TokenAck)); err != nil {
		t.Fatalf("write error = %v", err)
	}
	expectNoReply(t, client, 150*time.Millisecond)

	// A disconnect is not echoed.
	if _, err := client.Write([]byte(wire.TokenDisconnect)); err != nil {
		t.Fatalf("write error = %v", err)
	}
	expectNoReply(t, client, 150*time.Millisecond)
}

func TestResponderCloseNotifiesPeer(t *testing.T) {
	r := startResponder(t, ResponderConfig{})
	client := dialClient(t, r)

	if _, err := client.Write([]byte(wire.Discover("client"))); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if reply := readReply(t, client); !wire.IsShake(reply) {
		t.Fatalf("handshake reply = %q", reply)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if reply := readReply(t, client); !wire.IsDisconnect(reply) {
		t.Errorf("close notification = %q, want disconnect", reply)
	}
	if err := r.Close(); err != transport.ErrClosed {
		t.Errorf("second Close() error = %v, want %v", err, transport.ErrClosed)
	}
}

func TestResponderDisconnectedPeerGetsNoCloseNotice(t *testing.T) {
	r := startResponder(t, ResponderConfig{})
	client := dialClient(t, r)

	if _, err := client.Write([]byte(wire.Discover("client"))); err != nil {
		t.Fatalf("write error = %v", err)
	}
	readReply(t, client)

	// The peer said goodbye first; Close must not message it again.
	if _, err := client.Write([]byte(wire.TokenDisconnect)); err != nil {
		t.Fatalf("write error = %v", err)
	}
	expectNoReply(t, client, 150*time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	expectNoReply(t, client, 150*time.Millisecond)
}

func TestSessionResponderEndToEnd(t *testing.T) {
	messages := make(chan string, 8)
	r := startResponder(t, ResponderConfig{
		DeviceName: "answering-side",
		OnMessage: func(payload string, from net.Addr) {
			messages <- payload
		},
	})

	delegate := newTestDelegate()
	s, err := NewSession(Config{
		DeviceName: "asking-side",
		Delegate:   delegate,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	addr := r.Addr().(*net.UDPAddr)
	if err := s.Connect("127.0.0.1", addr.Port); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	delegate.waitState(t, StateConnected)

	if err := s.Send("telemetry 4"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case payload := <-messages:
		if payload != "telemetry 4" {
			t.Errorf("responder payload = %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for responder delivery")
	}
	if got := delegate.waitStrength(t); got != 100 {
		t.Errorf("strength after acked send = %v, want 100", got)
	}

	s.Close()
	delegate.waitState(t, StateDisconnected)
}
