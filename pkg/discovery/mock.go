package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver provides a mock mDNS resolver for testing without real
// network I/O. It allows registering entries and simulating browse responses.
type MockMDNSResolver struct {
	mu      sync.RWMutex
	entries map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		entries: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// AddEntry registers an entry that will be returned by Browse/Lookup.
func (m *MockMDNSResolver) AddEntry(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[service] = append(m.entries[service], entry)
}

// Clear removes all registered entries.
func (m *MockMDNSResolver) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]*zeroconf.ServiceEntry)
}

// Browse implements MDNSResolver.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.RLock()
	found := make([]*zeroconf.ServiceEntry, len(m.entries[service]))
	copy(found, m.entries[service])
	m.mu.RUnlock()

	for _, entry := range found {
		select {
		case entries <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// A real browse keeps listening until the context is done.
	<-ctx.Done()
	return ctx.Err()
}

// Lookup implements MDNSResolver.
func (m *MockMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.RLock()
	found := make([]*zeroconf.ServiceEntry, len(m.entries[service]))
	copy(found, m.entries[service])
	m.mu.RUnlock()

	for _, entry := range found {
		if entry.Instance != instance {
			continue
		}
		select {
		case entries <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	<-ctx.Done()
	return ctx.Err()
}

// MockEntry builds a zeroconf.ServiceEntry for tests.
func MockEntry(instance, host string, port int, addrs ...net.IP) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{
		HostName: host,
		Port:     port,
	}
	entry.Instance = instance
	for _, ip := range addrs {
		if ip.To4() != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, ip)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, ip)
		}
	}
	return entry
}
