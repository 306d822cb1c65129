package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestSearchFirstCandidateWins(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.AddEntry("_dscv._udp", MockEntry("first", "first.local.", 1024, net.ParseIP("192.168.1.10")))
	mock.AddEntry("_dscv._udp", MockEntry("second", "second.local.", 1024, net.ParseIP("192.168.1.11")))

	b, err := NewBrowser(BrowserConfig{MDNSResolver: mock, SearchTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}

	svc, err := b.Search(context.Background(), "_dscv._udp.", "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if svc.Name != "first" {
		t.Errorf("Search() returned %q, want first candidate", svc.Name)
	}
	if svc.Port != 1024 {
		t.Errorf("Search() port = %d, want 1024", svc.Port)
	}
	if svc.Domain != DefaultDomain {
		t.Errorf("Search() domain = %q, want %q", svc.Domain, DefaultDomain)
	}
}

func TestSearchTimeout(t *testing.T) {
	b, err := NewBrowser(BrowserConfig{
		MDNSResolver:  NewMockMDNSResolver(),
		SearchTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}

	_, err = b.Search(context.Background(), "_dscv._udp.", "")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Search() error = %v, want %v", err, ErrTimeout)
	}
}

func TestSearchCallerStop(t *testing.T) {
	b, err := NewBrowser(BrowserConfig{
		MDNSResolver:  NewMockMDNSResolver(),
		SearchTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = b.Search(ctx, "_dscv._udp.", "")
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Search() after stop error = %v, want %v", err, ErrCanceled)
	}
}

func TestSearchInvalidServiceType(t *testing.T) {
	b, err := NewBrowser(BrowserConfig{MDNSResolver: NewMockMDNSResolver()})
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}

	if _, err := b.Search(context.Background(), "_dscv._udp", ""); !errors.Is(err, ErrInvalidServiceType) {
		t.Errorf("Search() error = %v, want %v", err, ErrInvalidServiceType)
	}
}
