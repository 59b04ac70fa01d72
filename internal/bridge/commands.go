package bridge

import (
	"fmt"
	"net/netip"

	"github.com/anstrom/ragescanner/internal/scanning"
)

// CommandType identifies an inbound command.
type CommandType string

const (
	CommandStartScan      CommandType = "start_scan"
	CommandStartScanRange CommandType = "start_scan_range"
	CommandStopScan       CommandType = "stop_scan"
)

// Command is a request from a frontend to the bridge.
type Command struct {
	Type CommandType

	// Text is the textual range of a CommandStartScan.
	Text string

	// Start and End bound a CommandStartScanRange.
	Start netip.Addr
	End   netip.Addr
}

// StartScan requests a scan of a textual range such as "192.168.1.1-254".
func StartScan(text string) Command {
	return Command{Type: CommandStartScan, Text: text}
}

// StartScanRange requests a scan between two addresses.
func StartScanRange(start, end netip.Addr) Command {
	return Command{Type: CommandStartScanRange, Start: start, End: end}
}

// StopScan requests cancellation of the active scan.
func StopScan() Command {
	return Command{Type: CommandStopScan}
}

// Range normalizes a start command to a validated range.
func (c Command) Range() (scanning.Range, error) {
	switch c.Type {
	case CommandStartScan:
		return scanning.ParseRange(c.Text)
	case CommandStartScanRange:
		return scanning.NewRange(c.Start, c.End)
	default:
		return scanning.Range{}, fmt.Errorf("command %q carries no range", c.Type)
	}
}

func (c Command) String() string {
	switch c.Type {
	case CommandStartScan:
		return fmt.Sprintf("%s(%s)", c.Type, c.Text)
	case CommandStartScanRange:
		return fmt.Sprintf("%s(%s-%s)", c.Type, c.Start, c.End)
	default:
		return string(c.Type)
	}
}
