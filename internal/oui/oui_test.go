package oui

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func TestParseIEEE(t *testing.T) {
	registry := `OUI/MA-L                                                    Organization
company_id                                                  Organization
                                                            Address

00-00-0C   (hex)		Cisco Systems, Inc
00000C     (base 16)		Cisco Systems, Inc
				170 WEST TASMAN DRIVE
				SAN JOSE CA 95134-1706
				US

B8-27-EB   (hex)		Raspberry Pi Foundation
B827EB     (base 16)		Raspberry Pi Foundation
`
	db, err := Parse(strings.NewReader(registry))
	require.NoError(t, err)

	assert.Equal(t, 2, db.Len())
	assert.Equal(t, "Cisco Systems, Inc", db.Lookup(mustMAC(t, "00:00:0c:12:34:56")))
	assert.Equal(t, "Raspberry Pi Foundation", db.Lookup(mustMAC(t, "b8:27:eb:00:00:01")))
}

func TestParseManuf(t *testing.T) {
	registry := "# comment\n" +
		"00:50:56\tVMware\tVMware, Inc.\n" +
		"00:1B:C5:00:00:00/36\tConvergi\tConverging Systems Inc.\n" +
		"AC:DE:48\tPrivate\n" +
		"not a line\n"

	db, err := Parse(strings.NewReader(registry))
	require.NoError(t, err)

	assert.Equal(t, 2, db.Len())
	assert.Equal(t, "VMware, Inc.", db.Lookup(mustMAC(t, "00:50:56:aa:bb:cc")))
	assert.Equal(t, "Private", db.Lookup(mustMAC(t, "ac:de:48:00:11:22")))
	assert.Empty(t, db.Lookup(mustMAC(t, "00:1b:c5:00:00:01")))
}

func TestLookupEdgeCases(t *testing.T) {
	db := Default()
	require.Greater(t, db.Len(), 10)

	assert.Equal(t, "VMware, Inc.", db.Lookup(mustMAC(t, "00:0C:29:01:02:03")))
	assert.Empty(t, db.Lookup(net.HardwareAddr{0x00}), "short address")
	assert.Empty(t, db.Lookup(mustMAC(t, "02:00:00:00:00:01")), "locally administered")
	assert.Empty(t, db.Lookup(mustMAC(t, "00:00:01:00:00:01")), "unknown prefix")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manuf")
	require.NoError(t, os.WriteFile(path, []byte("08:00:27\tPcsCompu\tPCS Systemtechnik GmbH\n"), 0o600))

	db, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PCS Systemtechnik GmbH", db.Lookup(mustMAC(t, "08:00:27:aa:bb:cc")))

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestPrefixString(t *testing.T) {
	p, ok := PrefixOf(mustMAC(t, "dc:a6:32:01:02:03"))
	require.True(t, ok)
	assert.Equal(t, "DC:A6:32", p.String())
}
