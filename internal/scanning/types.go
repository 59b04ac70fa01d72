package scanning

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/anstrom/ragescanner/internal/errors"
)

// State is the lifecycle state of a single target.
type State string

const (
	// StateScanning is the initial state of every result.
	StateScanning State = "scanning"
	// StateOnline means the host answered a reachability probe or was resolved on the link.
	StateOnline State = "online"
	// StateOffline means the host could not be reached.
	StateOffline State = "offline"
	// StateError means a platform or internal failure stopped the pipeline.
	StateError State = "error"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateOnline || s == StateOffline || s == StateError
}

// Result is everything learned about one target. It is owned by the pipeline
// that created it and never modified after it has been emitted.
type Result struct {
	// IP is the probed address.
	IP netip.Addr
	// Hostname is the reverse-resolved name, empty when unknown.
	Hostname string
	// MAC is the link-layer address in upper-case colon form, empty when unresolved.
	MAC string
	// Vendor is the hardware manufacturer derived from MAC, empty when unknown.
	Vendor string
	// State is the target's status.
	State State
	// Err carries the cause when State is StateError.
	Err error
	// OpenPorts lists open well-known ports in table order.
	OpenPorts []uint16
	// Duration is how long the pipeline took.
	Duration time.Duration
}

// NewResult creates a result for ip in the scanning state.
func NewResult(ip netip.Addr) *Result {
	return &Result{
		IP:        ip,
		State:     StateScanning,
		OpenPorts: []uint16{},
	}
}

// Fail moves the result into the error state. Ports found so far are dropped.
func (r *Result) Fail(err error) {
	r.State = StateError
	r.Err = err
	r.OpenPorts = []uint16{}
}

// StatusText renders the state for display.
func (r *Result) StatusText() string {
	switch r.State {
	case StateScanning:
		return "Scanning..."
	case StateOnline:
		return "Online"
	case StateOffline:
		return "Offline"
	case StateError:
		return fmt.Sprintf("Error: %v", r.Err)
	default:
		return string(r.State)
	}
}

// Services returns the service labels for the open ports.
func (r *Result) Services() []string {
	out := make([]string, 0, len(r.OpenPorts))
	for _, p := range r.OpenPorts {
		out = append(out, ServiceName(p))
	}
	return out
}

type resultJSON struct {
	IP         string              `json:"ip"`
	Hostname   string              `json:"hostname,omitempty"`
	MAC        string              `json:"mac,omitempty"`
	Vendor     string              `json:"vendor,omitempty"`
	Status     State               `json:"status"`
	Error      *errors.Description `json:"error,omitempty"`
	OpenPorts  []uint16            `json:"open_ports"`
	DurationMS int64               `json:"duration_ms"`
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	ports := r.OpenPorts
	if ports == nil {
		ports = []uint16{}
	}
	return json.Marshal(resultJSON{
		IP:         r.IP.String(),
		Hostname:   r.Hostname,
		MAC:        r.MAC,
		Vendor:     r.Vendor,
		Status:     r.State,
		Error:      errors.Describe(r.Err),
		OpenPorts:  ports,
		DurationMS: r.Duration.Milliseconds(),
	})
}

// Request describes a single engine invocation.
type Request struct {
	ID    string
	Range Range
}
