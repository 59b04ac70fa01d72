package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/scanning"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return errors.NewInternalError(errors.CodeValidation,
			fmt.Sprintf("unknown output format %q, expected table or json", format))
	}
}

// reportJSON is the machine-readable form of a finished scan.
type reportJSON struct {
	ScanID     string             `json:"scan_id"`
	Range      string             `json:"range"`
	Outcome    scanning.EventType `json:"outcome"`
	DurationMS int64              `json:"duration_ms"`
	Summary    summary            `json:"summary"`
	Results    []*scanning.Result `json:"results"`
}

type summary struct {
	Scanned int `json:"scanned"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
	Errors  int `json:"errors"`
}

func summarize(results []*scanning.Result) summary {
	s := summary{Scanned: len(results)}
	for _, r := range results {
		switch r.State {
		case scanning.StateOnline:
			s.Online++
		case scanning.StateOffline:
			s.Offline++
		case scanning.StateError:
			s.Errors++
		}
	}
	return s
}

// sortedResults returns the results ordered by address, optionally keeping
// only the online hosts.
func sortedResults(results []*scanning.Result, onlineOnly bool) []*scanning.Result {
	out := make([]*scanning.Result, 0, len(results))
	for _, r := range results {
		if onlineOnly && r.State != scanning.StateOnline {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP.Less(out[j].IP) })
	return out
}

func writeReport(w io.Writer, format string, report *scanReport, onlineOnly bool) error {
	results := sortedResults(report.Results, onlineOnly)

	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reportJSON{
			ScanID:     report.ScanID,
			Range:      report.Range,
			Outcome:    report.Outcome,
			DurationMS: report.Elapsed.Milliseconds(),
			Summary:    summarize(report.Results),
			Results:    results,
		})
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No hosts to show.")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("IP", "Hostname", "MAC", "Vendor", "Status", "Open Ports")
		for _, r := range results {
			_ = table.Append([]string{
				r.IP.String(),
				orDash(r.Hostname),
				orDash(r.MAC),
				orDash(r.Vendor),
				r.StatusText(),
				orDash(formatPorts(r.OpenPorts)),
			})
		}
		_ = table.Render()
	}

	s := summarize(report.Results)
	line := fmt.Sprintf("Scanned %d hosts in %s: %d online, %d offline, %d errors",
		s.Scanned, report.Elapsed.Round(10*time.Millisecond), s.Online, s.Offline, s.Errors)
	if report.Outcome == scanning.EventScanCancelled {
		line += " (cancelled)"
	}
	fmt.Fprintln(w, line)
	return nil
}

// formatPorts renders ports as "22/SSH, 80/HTTP".
func formatPorts(ports []uint16) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, fmt.Sprintf("%d/%s", p, scanning.ServiceName(p)))
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
