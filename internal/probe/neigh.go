package probe

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"
)

const (
	neighbourPollInterval = 50 * time.Millisecond
	// Discard protocol; any closed UDP port works for provoking ARP.
	primePort = 9
)

// neighbourResolver answers link-layer queries from the kernel neighbour
// table, provoking resolution with a throwaway datagram when the entry is
// missing.
type neighbourResolver struct {
	timeout time.Duration
	lookup  func(ip netip.Addr) (net.HardwareAddr, error)
	links   func() ([]link, error)
}

// link is a local interface address and the prefix it is attached to.
type link struct {
	prefix netip.Prefix
	mac    net.HardwareAddr
}

func newNeighbourResolver(timeout time.Duration) *neighbourResolver {
	return &neighbourResolver{
		timeout: timeout,
		lookup:  lookupNeighbour,
		links:   localLinks,
	}
}

func (n *neighbourResolver) Resolve(ctx context.Context, ip netip.Addr) (net.HardwareAddr, error) {
	links, err := n.links()
	if err != nil {
		return nil, err
	}

	attached := false
	for _, l := range links {
		if l.prefix.Addr() == ip {
			return l.mac, nil
		}
		if l.prefix.Contains(ip) {
			attached = true
		}
	}
	if !attached {
		return nil, nil
	}

	if mac, err := n.lookup(ip); err != nil || mac != nil {
		return mac, err
	}

	prime(ip)

	deadline := time.Now().Add(n.timeout)
	ticker := time.NewTicker(neighbourPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}

		mac, err := n.lookup(ip)
		if err != nil || mac != nil {
			return mac, err
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
	}
}

// prime sends one datagram to ip so the kernel starts address resolution.
func prime(ip netip.Addr) {
	conn, err := net.DialTimeout("udp4", net.JoinHostPort(ip.String(), strconv.Itoa(primePort)), time.Second)
	if err != nil {
		return
	}
	defer conn.Close()
	_, _ = conn.Write([]byte{0})
}

// localLinks lists the IPv4 prefixes of up, non-loopback interfaces.
func localLinks() ([]link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []link
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok || !addr.Unmap().Is4() {
				continue
			}
			ones, _ := ipNet.Mask.Size()
			out = append(out, link{
				prefix: netip.PrefixFrom(addr.Unmap(), ones),
				mac:    iface.HardwareAddr,
			})
		}
	}
	return out, nil
}
