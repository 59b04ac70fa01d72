package probe

import (
	"context"
	"net/netip"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
)

// nmapPinger runs an nmap host discovery (-sn) against one address. It is
// useful where ICMP sockets are unavailable, since nmap falls back to TCP and
// ARP probes on its own.
type nmapPinger struct {
	timeout time.Duration
	logger  *logging.Logger
}

func (p *nmapPinger) Ping(ctx context.Context, ip netip.Addr) (bool, error) {
	// nmap's own retransmissions need headroom beyond a single echo timeout.
	ctx, cancel := context.WithTimeout(ctx, 5*p.timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(ip.String()),
		nmap.WithPingScan(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
	)
	if err != nil {
		return false, errors.FromSyscall("nmap init", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return false, errors.FromSyscall("nmap ping scan", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		p.logger.Debug("nmap reported warnings", "target", ip.String(), "warnings", *warnings)
	}

	for i := range result.Hosts {
		if result.Hosts[i].Status.State == "up" {
			return true, nil
		}
	}
	return false, nil
}
