package scanning

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/anstrom/ragescanner/internal/errors"
)

const rangeSeparator = "-"

// Range is an inclusive span of IPv4 addresses with Start <= End.
type Range struct {
	Start netip.Addr `json:"start"`
	End   netip.Addr `json:"end"`
}

// NewRange validates start and end and returns the range they span. Both must
// be IPv4 and end must not precede start; the bounds are never swapped.
func NewRange(start, end netip.Addr) (Range, error) {
	start, end = start.Unmap(), end.Unmap()
	if !start.Is4() {
		return Range{}, errors.ErrInvalidRange("invalid start address %q: not an IPv4 address", start)
	}
	if !end.Is4() {
		return Range{}, errors.ErrInvalidRange("invalid end address %q: not an IPv4 address", end)
	}
	if ipv4ToUint32(end) < ipv4ToUint32(start) {
		return Range{}, errors.ErrInvalidRange("end address (%s) cannot be less than start address (%s)", end, start)
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses a textual range. Accepted forms are a single address
// ("10.0.0.1"), an address pair ("10.0.0.1-10.0.0.255") and an address with
// a final-octet bound ("192.168.1.1-50"). Whitespace around the separator is
// ignored.
func ParseRange(text string) (Range, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Range{}, errors.ErrInvalidRange("empty range")
	}

	startText, endText, hasEnd := strings.Cut(text, rangeSeparator)
	startText = strings.TrimSpace(startText)

	start, err := netip.ParseAddr(startText)
	if err != nil || !start.Unmap().Is4() {
		return Range{}, errors.ErrInvalidRange("invalid start address: %q", startText)
	}
	start = start.Unmap()

	if !hasEnd {
		return Range{Start: start, End: start}, nil
	}

	endText = strings.TrimSpace(endText)
	end, err := parseRangeEnd(start, endText)
	if err != nil {
		return Range{}, err
	}

	return NewRange(start, end)
}

// parseRangeEnd reads the right-hand side of a range: either a full IPv4
// address or a decimal octet replacing the last octet of start.
func parseRangeEnd(start netip.Addr, text string) (netip.Addr, error) {
	if end, err := netip.ParseAddr(text); err == nil {
		if end = end.Unmap(); end.Is4() {
			return end, nil
		}
	}

	octet, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return netip.Addr{}, errors.ErrInvalidRange("invalid end address or octet: %q", text)
	}

	b := start.As4()
	b[3] = byte(octet)
	return netip.AddrFrom4(b), nil
}

// Size returns the number of addresses in the range.
func (r Range) Size() uint64 {
	return uint64(ipv4ToUint32(r.End)-ipv4ToUint32(r.Start)) + 1
}

// Contains reports whether ip lies within the range.
func (r Range) Contains(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.Is4() {
		return false
	}
	v := ipv4ToUint32(ip)
	return v >= ipv4ToUint32(r.Start) && v <= ipv4ToUint32(r.End)
}

// Each calls fn for every address in ascending order until fn returns false.
func (r Range) Each(fn func(netip.Addr) bool) {
	start, end := ipv4ToUint32(r.Start), ipv4ToUint32(r.End)
	for v := start; ; v++ {
		if !fn(uint32ToIPv4(v)) || v == end {
			return
		}
	}
}

// String renders the range in the form ParseRange accepts.
func (r Range) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

func ipv4ToUint32(ip netip.Addr) uint32 {
	b := ip.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToIPv4(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
