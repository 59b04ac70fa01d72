package probe

import (
	"context"
	stderrors "errors"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/anstrom/ragescanner/internal/errors"
)

const (
	protocolICMP = 1
	maxPacket    = 1500
)

var echoPayload = []byte("ragescanner-echo")

// icmpPinger sends a single ICMP echo request per probe. Unprivileged mode
// uses datagram ICMP sockets (Linux net.ipv4.ping_group_range, macOS);
// privileged mode uses raw sockets.
type icmpPinger struct {
	timeout    time.Duration
	privileged bool
	id         int
	seq        atomic.Uint32
}

func newICMPPinger(timeout time.Duration, privileged bool) *icmpPinger {
	return &icmpPinger{
		timeout:    timeout,
		privileged: privileged,
		id:         os.Getpid() & 0xffff,
	}
}

func (p *icmpPinger) Ping(ctx context.Context, ip netip.Addr) (bool, error) {
	network := "udp4"
	if p.privileged {
		network = "ip4:icmp"
	}

	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return false, errors.FromSyscall("icmp listen", err)
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: echoPayload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return false, errors.WrapInternalError(errors.CodeProbeFailed, "marshal echo request", err)
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false, errors.FromSyscall("icmp deadline", err)
	}

	var dst net.Addr = &net.UDPAddr{IP: ip.AsSlice()}
	if p.privileged {
		dst = &net.IPAddr{IP: ip.AsSlice()}
	}
	if _, err := conn.WriteTo(wb, dst); err != nil {
		if unreachable(err) {
			return false, nil
		}
		return false, errors.FromSyscall("icmp send", err)
	}

	rb := make([]byte, maxPacket)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			var ne net.Error
			if stderrors.As(err, &ne) && ne.Timeout() {
				return false, nil
			}
			if unreachable(err) {
				return false, nil
			}
			return false, errors.FromSyscall("icmp receive", err)
		}
		if addrOf(peer) != ip {
			continue
		}
		if p.isReply(rb[:n], seq) {
			return true, nil
		}
	}
}

func (p *icmpPinger) isReply(b []byte, seq int) bool {
	rm, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := rm.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}
	// Datagram sockets rewrite the identifier; only raw sockets keep ours.
	return !p.privileged || echo.ID == p.id
}

func unreachable(err error) bool {
	return stderrors.Is(err, syscall.EHOSTUNREACH) ||
		stderrors.Is(err, syscall.ENETUNREACH) ||
		stderrors.Is(err, syscall.EHOSTDOWN)
}

func addrOf(a net.Addr) netip.Addr {
	var ip net.IP
	switch v := a.(type) {
	case *net.UDPAddr:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}
	}
	addr, _ := netip.AddrFromSlice(ip)
	return addr.Unmap()
}
