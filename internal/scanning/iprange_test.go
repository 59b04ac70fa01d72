package scanning

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ragescanner/internal/errors"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		start   string
		end     string
		wantErr string
	}{
		{name: "full pair", input: "10.0.0.1-10.0.0.255", start: "10.0.0.1", end: "10.0.0.255"},
		{name: "octet end", input: "192.168.1.1-50", start: "192.168.1.1", end: "192.168.1.50"},
		{name: "single host", input: "10.0.0.1", start: "10.0.0.1", end: "10.0.0.1"},
		{name: "spaces around separator", input: " 10.0.0.1 - 10.0.0.3 ", start: "10.0.0.1", end: "10.0.0.3"},
		{name: "octet equal to start", input: "10.0.0.5-5", start: "10.0.0.5", end: "10.0.0.5"},
		{name: "octet zero", input: "10.0.0.0-0", start: "10.0.0.0", end: "10.0.0.0"},
		{name: "cross octet boundary", input: "10.0.0.250-10.0.1.5", start: "10.0.0.250", end: "10.0.1.5"},
		{name: "end below start", input: "10.0.0.10-5", wantErr: "end address (10.0.0.5) cannot be less than start address (10.0.0.10)"},
		{name: "full end below start", input: "10.0.1.1-10.0.0.1", wantErr: "cannot be less than"},
		{name: "not an address", input: "not-an-ip", wantErr: "invalid start address"},
		{name: "empty", input: "", wantErr: "empty range"},
		{name: "octet overflow", input: "10.0.0.1-256", wantErr: "invalid end address or octet"},
		{name: "garbage end", input: "10.0.0.1-abc", wantErr: "invalid end address or octet"},
		{name: "missing end", input: "10.0.0.1-", wantErr: "invalid end address or octet"},
		{name: "ipv6 start", input: "fe80::1", wantErr: "invalid start address"},
		{name: "ipv6 end", input: "10.0.0.1-fe80::1", wantErr: "invalid end address or octet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := ParseRange(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCode(err, errors.CodeInvalidRange))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, netip.MustParseAddr(tt.start), rng.Start)
			assert.Equal(t, netip.MustParseAddr(tt.end), rng.End)
		})
	}
}

func TestParseRangeMatchesTypedForm(t *testing.T) {
	parsed, err := ParseRange("192.168.1.1-50")
	require.NoError(t, err)

	typed, err := NewRange(netip.MustParseAddr("192.168.1.1"), netip.MustParseAddr("192.168.1.50"))
	require.NoError(t, err)

	assert.Equal(t, typed, parsed)
}

func TestNewRange(t *testing.T) {
	_, err := NewRange(netip.MustParseAddr("10.0.0.2"), netip.MustParseAddr("10.0.0.1"))
	assert.Error(t, err)

	_, err = NewRange(netip.MustParseAddr("::1"), netip.MustParseAddr("::2"))
	assert.Error(t, err)

	rng, err := NewRange(netip.MustParseAddr("::ffff:10.0.0.1"), netip.MustParseAddr("10.0.0.2"))
	require.NoError(t, err)
	assert.True(t, rng.Start.Is4())
	assert.Equal(t, uint64(2), rng.Size())
}

func TestRangeSizeAndEach(t *testing.T) {
	tests := []struct {
		input string
		size  uint64
	}{
		{"10.0.0.1", 1},
		{"10.0.0.1-10.0.0.255", 255},
		{"10.0.0.0-10.0.255.255", 65536},
		{"0.0.0.0-255.255.255.255", 1 << 32},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rng, err := ParseRange(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.size, rng.Size())
		})
	}

	rng, err := ParseRange("10.0.0.254-10.0.1.1")
	require.NoError(t, err)

	var got []string
	rng.Each(func(ip netip.Addr) bool {
		got = append(got, ip.String())
		return true
	})
	assert.Equal(t, []string{"10.0.0.254", "10.0.0.255", "10.0.1.0", "10.0.1.1"}, got)

	var stopped int
	rng.Each(func(netip.Addr) bool {
		stopped++
		return stopped < 2
	})
	assert.Equal(t, 2, stopped)
}

func TestRangeEachAtTopOfSpace(t *testing.T) {
	rng, err := ParseRange("255.255.255.254-255")
	require.NoError(t, err)

	var n int
	rng.Each(func(netip.Addr) bool {
		n++
		return true
	})
	assert.Equal(t, 2, n)
}

func TestRangeContainsAndString(t *testing.T) {
	rng, err := ParseRange("192.168.1.10-20")
	require.NoError(t, err)

	assert.True(t, rng.Contains(netip.MustParseAddr("192.168.1.10")))
	assert.True(t, rng.Contains(netip.MustParseAddr("192.168.1.20")))
	assert.False(t, rng.Contains(netip.MustParseAddr("192.168.1.21")))
	assert.False(t, rng.Contains(netip.MustParseAddr("fe80::1")))

	assert.Equal(t, "192.168.1.10-192.168.1.20", rng.String())

	single, err := ParseRange("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", single.String())

	// String output parses back to the same range.
	again, err := ParseRange(rng.String())
	require.NoError(t, err)
	assert.Equal(t, rng, again)
}
