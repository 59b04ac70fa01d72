package probe

import (
	"context"
	stderrors "errors"
	"net"
	"net/netip"
	"strings"

	"github.com/gosnmp/gosnmp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
)

const (
	resolvConf = "/etc/resolv.conf"
	sysNameOID = ".1.3.6.1.2.1.1.5.0"
)

// nameResolver finds a hostname for an address: a PTR query first, then,
// when enabled, the SNMP sysName of the device.
type nameResolver struct {
	servers []string
	client  *dns.Client
	system  *net.Resolver
	snmp    SNMPConfig
	cache   *expirable.LRU[netip.Addr, string]
	logger  *logging.Logger
}

func newNameResolver(cfg Config, logger *logging.Logger) *nameResolver {
	servers := cfg.DNS.Servers
	if len(servers) == 0 {
		if cc, err := dns.ClientConfigFromFile(resolvConf); err == nil {
			for _, s := range cc.Servers {
				servers = append(servers, net.JoinHostPort(s, cc.Port))
			}
		}
	}

	return &nameResolver{
		servers: servers,
		client:  &dns.Client{Net: "udp", Timeout: cfg.DNS.Timeout},
		system:  net.DefaultResolver,
		snmp:    cfg.SNMP,
		cache:   expirable.NewLRU[netip.Addr, string](cfg.DNS.CacheSize, nil, cfg.DNS.CacheTTL),
		logger:  logger,
	}
}

func (r *nameResolver) Resolve(ctx context.Context, ip netip.Addr) (string, error) {
	if name, ok := r.cache.Get(ip); ok {
		return name, nil
	}

	name, err := r.lookupPTR(ctx, ip)
	if name == "" && r.snmp.Enabled {
		name = r.sysName(ctx, ip)
	}
	// Some resolvers echo the literal back.
	if name == ip.String() {
		name = ""
	}
	if err != nil && name == "" {
		return "", err
	}

	r.cache.Add(ip, name)
	return name, nil
}

func (r *nameResolver) lookupPTR(ctx context.Context, ip netip.Addr) (string, error) {
	if len(r.servers) == 0 {
		return r.lookupSystem(ctx, ip)
	}

	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", errors.WrapInternalError(errors.CodeProbeFailed, "build reverse name", err)
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode == dns.RcodeServerFailure {
			lastErr = stderrors.New(dns.RcodeToString[in.Rcode])
			continue
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", nil
	}
	return "", errors.WrapInternalError(errors.CodeProbeFailed, "reverse lookup", lastErr)
}

// lookupSystem uses the platform resolver, which also consults hosts files
// and multicast name services where the system is configured for them.
func (r *nameResolver) lookupSystem(ctx context.Context, ip netip.Addr) (string, error) {
	names, err := r.system.LookupAddr(ctx, ip.String())
	if err != nil {
		var dnsErr *net.DNSError
		if stderrors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", nil
		}
		return "", errors.WrapInternalError(errors.CodeProbeFailed, "reverse lookup", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	return strings.TrimSuffix(names[0], "."), nil
}

func (r *nameResolver) sysName(ctx context.Context, ip netip.Addr) string {
	g := &gosnmp.GoSNMP{
		Target:    ip.String(),
		Port:      r.snmp.Port,
		Community: r.snmp.Community,
		Version:   gosnmp.Version2c,
		Timeout:   r.snmp.Timeout,
		Retries:   r.snmp.Retries,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		r.logger.Debug("snmp connect failed", "target", ip.String(), "error", err)
		return ""
	}
	defer g.Conn.Close()

	pkt, err := g.Get([]string{sysNameOID})
	if err != nil {
		r.logger.Debug("snmp sysName query failed", "target", ip.String(), "error", err)
		return ""
	}
	for _, v := range pkt.Variables {
		if v.Type != gosnmp.OctetString {
			continue
		}
		if b, ok := v.Value.([]byte); ok {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}
