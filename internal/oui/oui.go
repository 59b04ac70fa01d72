// Package oui maps MAC address prefixes to hardware vendor names.
//
// Two file layouts are understood: the IEEE registry export (oui.txt, lines
// such as "00-00-0C   (hex)		Cisco Systems, Inc") and the Wireshark manuf
// file ("00:00:0C	Cisco	Cisco Systems, Inc"). Only 24-bit assignments
// are kept.
package oui

import (
	"bufio"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
)

//go:embed manuf.txt
var builtin string

// Prefix is the 24-bit organizationally unique identifier of a MAC address.
type Prefix [3]byte

// String renders the prefix as "AA:BB:CC".
func (p Prefix) String() string {
	return fmt.Sprintf("%02X:%02X:%02X", p[0], p[1], p[2])
}

// PrefixOf returns the OUI of mac.
func PrefixOf(mac net.HardwareAddr) (Prefix, bool) {
	var p Prefix
	if len(mac) < 3 {
		return p, false
	}
	copy(p[:], mac[:3])
	return p, true
}

// DB is an immutable prefix to vendor table.
type DB struct {
	vendors map[Prefix]string
}

// Parse reads a registry in either supported layout.
func Parse(r io.Reader) (*DB, error) {
	db := &DB{vendors: make(map[Prefix]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefix, vendor, ok := parseLine(line)
		if !ok {
			continue
		}
		if _, dup := db.vendors[prefix]; !dup {
			db.vendors[prefix] = vendor
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read oui registry: %w", err)
	}
	return db, nil
}

func parseLine(line string) (Prefix, string, bool) {
	// IEEE: "00-00-0C   (hex)		Vendor"
	if key, rest, ok := strings.Cut(line, "(hex)"); ok {
		p, ok := parsePrefix(strings.TrimSpace(key))
		return p, strings.TrimSpace(rest), ok && strings.TrimSpace(rest) != ""
	}

	// manuf: "00:00:0C	Short	Long name"
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return Prefix{}, "", false
	}
	p, ok := parsePrefix(strings.TrimSpace(fields[0]))
	if !ok {
		return Prefix{}, "", false
	}
	vendor := strings.TrimSpace(fields[len(fields)-1])
	if vendor == "" {
		vendor = strings.TrimSpace(fields[1])
	}
	return p, vendor, vendor != ""
}

// parsePrefix accepts "00:00:0C", "00-00-0C" and "00000C". Entries with a
// mask ("00:1B:C5:00:00:00/36") are rejected.
func parsePrefix(s string) (Prefix, bool) {
	var p Prefix
	if strings.Contains(s, "/") {
		return p, false
	}
	s = strings.NewReplacer(":", "", "-", "", ".", "").Replace(s)
	if len(s) != 6 {
		return p, false
	}
	if _, err := hex.Decode(p[:], []byte(s)); err != nil {
		return p, false
	}
	return p, true
}

// Load parses the registry file at path.
func Load(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open oui registry: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

var (
	defaultDB   *DB
	defaultOnce sync.Once
)

// Default returns the built-in table.
func Default() *DB {
	defaultOnce.Do(func() {
		db, err := Parse(strings.NewReader(builtin))
		if err != nil {
			db = &DB{vendors: map[Prefix]string{}}
		}
		defaultDB = db
	})
	return defaultDB
}

// Lookup returns the vendor for mac, or "" when the prefix is unknown or the
// address is locally administered.
func (db *DB) Lookup(mac net.HardwareAddr) string {
	p, ok := PrefixOf(mac)
	if !ok || p[0]&0x02 != 0 {
		return ""
	}
	return db.vendors[p]
}

// Len returns the number of prefixes in the table.
func (db *DB) Len() int {
	return len(db.vendors)
}
