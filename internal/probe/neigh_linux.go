//go:build linux

package probe

import (
	"encoding/binary"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/anstrom/ragescanner/internal/errors"
)

// neighbour is one IPv4 entry of the kernel neighbour table.
type neighbour struct {
	ip    netip.Addr
	mac   net.HardwareAddr
	state uint16
}

// usable reports whether the entry holds a confirmed or recently confirmed address.
func (n neighbour) usable() bool {
	if len(n.mac) == 0 {
		return false
	}
	return n.state&(unix.NUD_REACHABLE|unix.NUD_STALE|unix.NUD_DELAY|unix.NUD_PROBE|unix.NUD_PERMANENT) != 0
}

func lookupNeighbour(ip netip.Addr) (net.HardwareAddr, error) {
	rib, err := syscall.NetlinkRIB(unix.RTM_GETNEIGH, unix.AF_INET)
	if err != nil {
		return nil, errors.FromSyscall("netlink RTM_GETNEIGH", err)
	}

	entries, err := parseNeighbours(rib)
	if err != nil {
		return nil, errors.FromSyscall("netlink parse", err)
	}

	for _, e := range entries {
		if e.ip == ip && e.usable() {
			return e.mac, nil
		}
	}
	return nil, nil
}

// parseNeighbours decodes an RTM_GETNEIGH dump into IPv4 entries.
func parseNeighbours(rib []byte) ([]neighbour, error) {
	msgs, err := syscall.ParseNetlinkMessage(rib)
	if err != nil {
		return nil, err
	}

	var out []neighbour
	for _, m := range msgs {
		if m.Header.Type != unix.RTM_NEWNEIGH || len(m.Data) < unix.SizeofNdMsg {
			continue
		}
		if m.Data[0] != unix.AF_INET {
			continue
		}

		n := neighbour{state: binary.NativeEndian.Uint16(m.Data[8:10])}
		attrs := m.Data[unix.SizeofNdMsg:]
		for len(attrs) >= unix.SizeofRtAttr {
			l := int(binary.NativeEndian.Uint16(attrs[0:2]))
			typ := binary.NativeEndian.Uint16(attrs[2:4])
			if l < unix.SizeofRtAttr || l > len(attrs) {
				break
			}
			val := attrs[unix.SizeofRtAttr:l]

			switch typ {
			case unix.NDA_DST:
				if addr, ok := netip.AddrFromSlice(val); ok {
					n.ip = addr.Unmap()
				}
			case unix.NDA_LLADDR:
				n.mac = append(net.HardwareAddr(nil), val...)
			}

			next := (l + 3) &^ 3
			if next >= len(attrs) {
				break
			}
			attrs = attrs[next:]
		}

		if n.ip.IsValid() {
			out = append(out, n)
		}
	}
	return out, nil
}
