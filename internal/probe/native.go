package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/oui"
)

type pinger interface {
	Ping(ctx context.Context, ip netip.Addr) (bool, error)
}

// Native probes targets using operating system facilities.
type Native struct {
	pinger     pinger
	neighbours *neighbourResolver
	names      *nameResolver
	vendors    *oui.DB
	vendorHits *lru.Cache[oui.Prefix, string]
	dialer     net.Dialer
	logger     *logging.Logger
}

var _ Prober = (*Native)(nil)

// NewNative builds a prober from cfg. An unreadable OUI file is an error; an
// empty path selects the built-in vendor table.
func NewNative(cfg Config, logger *logging.Logger) (*Native, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInternalError(errors.CodeConfiguration, "invalid probe configuration", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("probe")

	vendors := oui.Default()
	if cfg.OUIFile != "" {
		db, err := oui.Load(cfg.OUIFile)
		if err != nil {
			return nil, errors.WrapInternalError(errors.CodeConfiguration, "load oui registry", err)
		}
		vendors = db
	}

	cacheSize := cfg.VendorCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultConfig().VendorCacheSize
	}
	vendorHits, err := lru.New[oui.Prefix, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create vendor cache: %w", err)
	}

	var p pinger
	switch cfg.Reachability {
	case BackendNmap:
		p = &nmapPinger{timeout: cfg.PingTimeout, logger: logger}
	default:
		p = newICMPPinger(cfg.PingTimeout, cfg.Privileged)
	}

	logger.Debug("native prober ready",
		"reachability", cfg.Reachability,
		"privileged", cfg.Privileged,
		"vendors", vendors.Len(),
		"snmp", cfg.SNMP.Enabled)

	return &Native{
		pinger:     p,
		neighbours: newNeighbourResolver(cfg.ARPTimeout),
		names:      newNameResolver(cfg, logger),
		vendors:    vendors,
		vendorHits: vendorHits,
		logger:     logger,
	}, nil
}

// Ping implements Prober.
func (n *Native) Ping(ctx context.Context, ip netip.Addr) (bool, error) {
	return n.pinger.Ping(ctx, ip)
}

// ResolveMAC implements Prober.
func (n *Native) ResolveMAC(ctx context.Context, ip netip.Addr) (net.HardwareAddr, error) {
	mac, err := n.neighbours.Resolve(ctx, ip)
	if err != nil {
		return nil, err
	}
	if len(mac) == 0 {
		return nil, nil
	}
	return mac, nil
}

// ResolveHostname implements Prober.
func (n *Native) ResolveHostname(ctx context.Context, ip netip.Addr) (string, error) {
	return n.names.Resolve(ctx, ip)
}

// ResolveVendor implements Prober.
func (n *Native) ResolveVendor(_ context.Context, mac net.HardwareAddr) (string, error) {
	prefix, ok := oui.PrefixOf(mac)
	if !ok {
		return "", nil
	}
	if v, ok := n.vendorHits.Get(prefix); ok {
		return v, nil
	}
	v := n.vendors.Lookup(mac)
	n.vendorHits.Add(prefix, v)
	return v, nil
}

// PortOpen implements Prober. Refused, reset and timed-out connections are
// closed ports; running out of file descriptors is a platform error.
func (n *Native) PortOpen(ctx context.Context, ip netip.Addr, port uint16, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := n.dialer.DialContext(ctx, "tcp4", net.JoinHostPort(ip.String(), strconv.Itoa(int(port))))
	if err != nil {
		if stderrors.Is(err, syscall.EMFILE) || stderrors.Is(err, syscall.ENFILE) {
			return false, errors.FromSyscall("tcp connect", err)
		}
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}
