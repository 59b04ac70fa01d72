//go:build !linux

package probe

import (
	"net"
	"net/netip"
)

// lookupNeighbour has no neighbour table source outside Linux; every target
// is reported as unresolved and keeps its reachability verdict.
func lookupNeighbour(netip.Addr) (net.HardwareAddr, error) {
	return nil, nil
}
