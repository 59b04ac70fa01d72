package probe

import (
	"context"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Host scripts how a Fake answers for one address.
type Host struct {
	Reachable   bool
	PingErr     error
	MAC         net.HardwareAddr
	MACErr      error
	Hostname    string
	HostnameErr error
	Vendor      string
	OpenPorts   []uint16
	// Delay is spent inside Ping before answering.
	Delay time.Duration
	// Panic, when set, makes Ping panic with this value.
	Panic string
}

// Fake is a deterministic, instrumented Prober. Addresses without a scripted
// Host use Default.
type Fake struct {
	Default Host
	// OnPing, when set, runs at the start of every Ping call.
	OnPing func(ip netip.Addr)

	mu       sync.RWMutex
	hosts    map[netip.Addr]Host
	calls    map[string]int
	inFlight atomic.Int64
	peak     atomic.Int64
}

var _ Prober = (*Fake)(nil)

// NewFake returns a Fake where every unscripted address is offline.
func NewFake() *Fake {
	return &Fake{
		hosts: make(map[netip.Addr]Host),
		calls: make(map[string]int),
	}
}

// NewSimulatedLAN returns a Fake scripted with a small fixed network:
// 192.168.1.1 resolves on the link as "mock-host", 192.168.1.2 fails its
// reachability probe, every resolved MAC belongs to "Mock Vendor" and only
// port 80 is open.
func NewSimulatedLAN() *Fake {
	f := NewFake()
	f.Default.Vendor = "Mock Vendor"
	f.SetHost(netip.MustParseAddr("192.168.1.1"), Host{
		Reachable: true,
		MAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		Hostname:  "mock-host",
		Vendor:    "Mock Vendor",
		OpenPorts: []uint16{80},
	})
	f.SetHost(netip.MustParseAddr("192.168.1.2"), Host{
		PingErr: &simulatedError{"Simulated Failure"},
	})
	return f
}

type simulatedError struct{ msg string }

func (e *simulatedError) Error() string { return e.msg }

// SetHost scripts the answers for ip.
func (f *Fake) SetHost(ip netip.Addr, h Host) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[ip] = h
}

func (f *Fake) host(ip netip.Addr) Host {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if h, ok := f.hosts[ip]; ok {
		return h
	}
	return f.Default
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

// Calls returns how many times the named probe was invoked.
func (f *Fake) Calls(name string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[name]
}

// PeakPings returns the highest number of Ping calls that overlapped.
func (f *Fake) PeakPings() int {
	return int(f.peak.Load())
}

// Ping implements Prober.
func (f *Fake) Ping(ctx context.Context, ip netip.Addr) (bool, error) {
	f.record(NamePing)
	if f.OnPing != nil {
		f.OnPing(ip)
	}

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	h := f.host(ip)
	if h.Delay > 0 {
		select {
		case <-time.After(h.Delay):
		case <-ctx.Done():
		}
	}
	if h.Panic != "" {
		panic(h.Panic)
	}
	return h.Reachable, h.PingErr
}

// ResolveMAC implements Prober.
func (f *Fake) ResolveMAC(_ context.Context, ip netip.Addr) (net.HardwareAddr, error) {
	f.record(NameMAC)
	h := f.host(ip)
	return h.MAC, h.MACErr
}

// ResolveHostname implements Prober.
func (f *Fake) ResolveHostname(_ context.Context, ip netip.Addr) (string, error) {
	f.record(NameHostname)
	h := f.host(ip)
	return h.Hostname, h.HostnameErr
}

// ResolveVendor implements Prober.
func (f *Fake) ResolveVendor(_ context.Context, mac net.HardwareAddr) (string, error) {
	f.record(NameVendor)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, h := range f.hosts {
		if h.Vendor != "" && slices.Equal(h.MAC, mac) {
			return h.Vendor, nil
		}
	}
	return f.Default.Vendor, nil
}

// PortOpen implements Prober.
func (f *Fake) PortOpen(_ context.Context, ip netip.Addr, port uint16, _ time.Duration) (bool, error) {
	f.record(NamePort)
	return slices.Contains(f.host(ip).OpenPorts, port), nil
}
