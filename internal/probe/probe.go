// Package probe defines the network probing capability used by the scan
// engine and provides its implementations: Native, which talks to the
// operating system, and Fake, a deterministic stand-in for tests.
//
// Every operation returns either a definite answer or an error. "Not found"
// answers (no link-layer entry, no reverse name, unknown vendor) are reported
// as zero values with a nil error; errors are reserved for failures of the
// facility itself and are usually *errors.PlatformError values.
package probe

import (
	"context"
	"net"
	"net/netip"
	"time"
)

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks . Prober

// Prober is the set of probes run against a single target.
type Prober interface {
	// Ping reports whether ip answers a reachability probe.
	Ping(ctx context.Context, ip netip.Addr) (bool, error)

	// ResolveMAC returns the link-layer address of ip, or nil if the host
	// could not be resolved on a directly attached network.
	ResolveMAC(ctx context.Context, ip netip.Addr) (net.HardwareAddr, error)

	// ResolveHostname returns a name for ip, or "" if none is known.
	ResolveHostname(ctx context.Context, ip netip.Addr) (string, error)

	// ResolveVendor returns the manufacturer registered for mac, or "".
	ResolveVendor(ctx context.Context, mac net.HardwareAddr) (string, error)

	// PortOpen reports whether a TCP connection to ip:port completes within timeout.
	PortOpen(ctx context.Context, ip netip.Addr, port uint16, timeout time.Duration) (bool, error)
}

// Names of the individual probes, used in logs and metrics.
const (
	NamePing     = "ping"
	NameMAC      = "mac"
	NameHostname = "hostname"
	NameVendor   = "vendor"
	NamePort     = "port"
)

// FormatMAC renders mac in upper-case colon form, "" for an empty address.
func FormatMAC(mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return ""
	}
	const hexDigits = "0123456789ABCDEF"
	buf := make([]byte, 0, len(mac)*3-1)
	for i, b := range mac {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(buf)
}
