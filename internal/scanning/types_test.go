package scanning

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ragescanner/internal/errors"
)

func TestWellKnownPorts(t *testing.T) {
	ports := WellKnownPorts()
	require.Len(t, ports, 16)
	assert.Equal(t, PortService{21, "FTP"}, ports[0])
	assert.Equal(t, PortService{8080, "HTTP-alt"}, ports[len(ports)-1])

	for i := 1; i < len(ports); i++ {
		assert.Less(t, ports[i-1].Port, ports[i].Port)
	}

	// Callers get a copy.
	ports[0].Name = "changed"
	assert.Equal(t, "FTP", WellKnownPorts()[0].Name)

	assert.Equal(t, "PostgreSQL", ServiceName(5432))
	assert.Equal(t, UnknownService, ServiceName(9999))
}

func TestResultLifecycle(t *testing.T) {
	r := NewResult(netip.MustParseAddr("10.0.0.1"))
	assert.Equal(t, StateScanning, r.State)
	assert.False(t, r.State.Terminal())
	assert.Equal(t, "Scanning...", r.StatusText())

	r.State = StateOnline
	r.OpenPorts = []uint16{22, 80}
	assert.True(t, r.State.Terminal())
	assert.Equal(t, "Online", r.StatusText())
	assert.Equal(t, []string{"SSH", "HTTP"}, r.Services())

	r.Fail(errors.NewPlatformError(13, "permission denied"))
	assert.Equal(t, StateError, r.State)
	assert.Empty(t, r.OpenPorts)
	assert.Equal(t, "Error: platform error (13): permission denied", r.StatusText())

	r.State = StateOffline
	assert.Equal(t, "Offline", r.StatusText())
}

func TestResultJSON(t *testing.T) {
	r := NewResult(netip.MustParseAddr("192.168.1.1"))
	r.State = StateOnline
	r.Hostname = "mock-host"
	r.MAC = "00:11:22:33:44:55"
	r.OpenPorts = []uint16{80}
	r.Duration = 1500 * time.Millisecond

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ip": "192.168.1.1",
		"hostname": "mock-host",
		"mac": "00:11:22:33:44:55",
		"status": "online",
		"open_ports": [80],
		"duration_ms": 1500
	}`, string(data))

	failed := NewResult(netip.MustParseAddr("192.168.1.2"))
	failed.Fail(fmt.Errorf("simulated failure"))
	data, err = json.Marshal(failed)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "error", decoded["status"])
	assert.Equal(t, []any{}, decoded["open_ports"])
	require.Contains(t, decoded, "error")
	assert.Equal(t, "simulated failure", decoded["error"].(map[string]any)["message"])
}

func TestEventTerminal(t *testing.T) {
	r := NewResult(netip.MustParseAddr("10.0.0.1"))
	assert.False(t, NewScanUpdate("s", r).IsTerminal())
	assert.False(t, NewProgress("s", 50).IsTerminal())
	assert.True(t, NewScanComplete("s").IsTerminal())
	assert.True(t, NewScanCancelled("s").IsTerminal())
	assert.True(t, NewError("s", fmt.Errorf("boom")).IsTerminal())
}

func TestEventJSON(t *testing.T) {
	t.Run("progress carries zero", func(t *testing.T) {
		data, err := json.Marshal(NewProgress("scan-1", 0))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "progress", decoded["type"])
		assert.Equal(t, "scan-1", decoded["scan_id"])
		assert.Equal(t, float64(0), decoded["progress"])
	})

	t.Run("error carries code", func(t *testing.T) {
		data, err := json.Marshal(NewError("scan-2", errors.ErrInvalidRange("empty range")))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.NotContains(t, decoded, "progress")
		desc := decoded["error"].(map[string]any)
		assert.Equal(t, "internal", desc["kind"])
		assert.Equal(t, "INVALID_RANGE", desc["code"])
	})

	t.Run("update embeds result", func(t *testing.T) {
		r := NewResult(netip.MustParseAddr("10.0.0.1"))
		r.State = StateOffline
		data, err := json.Marshal(NewScanUpdate("scan-3", r))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "scan_update", decoded["type"])
		assert.Equal(t, "offline", decoded["result"].(map[string]any)["status"])
	})
}
