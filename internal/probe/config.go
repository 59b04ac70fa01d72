package probe

import (
	"fmt"
	"time"
)

// Reachability backends.
const (
	BackendICMP = "icmp"
	BackendNmap = "nmap"
)

// Config holds settings for the native prober.
type Config struct {
	// Reachability selects the ping backend: "icmp" or "nmap".
	Reachability string `yaml:"reachability" json:"reachability"`

	// PingTimeout bounds a single reachability probe.
	PingTimeout time.Duration `yaml:"ping_timeout" json:"ping_timeout"`

	// Privileged uses raw ICMP sockets instead of unprivileged datagram sockets.
	Privileged bool `yaml:"privileged" json:"privileged"`

	// ARPTimeout bounds how long to wait for a neighbour entry to resolve.
	ARPTimeout time.Duration `yaml:"arp_timeout" json:"arp_timeout"`

	// DNS configures reverse name lookups.
	DNS DNSConfig `yaml:"dns" json:"dns"`

	// SNMP configures the optional sysName fallback for hostnames.
	SNMP SNMPConfig `yaml:"snmp" json:"snmp"`

	// OUIFile is an IEEE oui.txt or Wireshark manuf file. Empty uses the built-in table.
	OUIFile string `yaml:"oui_file" json:"oui_file"`

	// VendorCacheSize is the number of vendor lookups kept in memory.
	VendorCacheSize int `yaml:"vendor_cache_size" json:"vendor_cache_size"`
}

// DNSConfig holds reverse lookup settings.
type DNSConfig struct {
	// Servers are host:port resolvers. Empty reads /etc/resolv.conf.
	Servers []string `yaml:"servers" json:"servers"`

	// Timeout bounds each query.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// CacheSize is the number of answers kept in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// CacheTTL is how long an answer, including a negative one, is reused.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// SNMPConfig holds settings for sysName queries.
type SNMPConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Community string        `yaml:"community" json:"community"`
	Port      uint16        `yaml:"port" json:"port"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	Retries   int           `yaml:"retries" json:"retries"`
}

// DefaultConfig returns the default prober configuration.
func DefaultConfig() Config {
	return Config{
		Reachability: BackendICMP,
		PingTimeout:  time.Second,
		ARPTimeout:   time.Second,
		DNS: DNSConfig{
			Timeout:   time.Second,
			CacheSize: 4096,
			CacheTTL:  5 * time.Minute,
		},
		SNMP: SNMPConfig{
			Community: "public",
			Port:      161,
			Timeout:   500 * time.Millisecond,
			Retries:   0,
		},
		VendorCacheSize: 1024,
	}
}

// Validate checks the configuration for values the prober cannot work with.
func (c Config) Validate() error {
	switch c.Reachability {
	case BackendICMP, BackendNmap:
	default:
		return fmt.Errorf("unknown reachability backend %q", c.Reachability)
	}
	if c.PingTimeout <= 0 {
		return fmt.Errorf("ping timeout must be positive")
	}
	if c.ARPTimeout < 0 {
		return fmt.Errorf("arp timeout cannot be negative")
	}
	if c.DNS.Timeout <= 0 {
		return fmt.Errorf("dns timeout must be positive")
	}
	if c.SNMP.Enabled && c.SNMP.Community == "" {
		return fmt.Errorf("snmp community is required when snmp is enabled")
	}
	return nil
}
