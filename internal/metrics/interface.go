// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks . Recorder

// Recorder is the set of measurements the scanner, worker pool and API take.
// This interface allows for easy mocking and testing of metrics functionality.
type Recorder interface {
	// IncrementScansTotal counts a finished scan by outcome (complete, cancelled, error).
	IncrementScansTotal(outcome string)

	// RecordScanDuration records the wall time of one scan.
	RecordScanDuration(duration time.Duration)

	// SetActiveScans sets the number of scans currently running.
	SetActiveScans(count int)

	// IncrementHostsScanned counts a finished target by status.
	IncrementHostsScanned(status string)

	// RecordHostDuration records how long a single target pipeline took.
	RecordHostDuration(duration time.Duration)

	// IncrementOpenPorts counts open ports found for a service.
	IncrementOpenPorts(service string, count int)

	// SetTargetsInFlight sets the number of admitted, unfinished targets.
	SetTargetsInFlight(count int)

	// IncrementProbeErrors counts a failed probe call by probe name.
	IncrementProbeErrors(probe string)

	// IncrementBlockingTasks counts a blocking pool task by status.
	IncrementBlockingTasks(status string)

	// IncrementHTTPRequests counts an API request.
	IncrementHTTPRequests(method, path, status string)

	// RecordHTTPDuration records API request latency.
	RecordHTTPDuration(method, path string, duration time.Duration)
}

// Ensure that PrometheusMetrics implements Recorder interface.
var _ Recorder = (*PrometheusMetrics)(nil)

// Nop discards every measurement.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) IncrementScansTotal(string)                       {}
func (Nop) RecordScanDuration(time.Duration)                 {}
func (Nop) SetActiveScans(int)                               {}
func (Nop) IncrementHostsScanned(string)                     {}
func (Nop) RecordHostDuration(time.Duration)                 {}
func (Nop) IncrementOpenPorts(string, int)                   {}
func (Nop) SetTargetsInFlight(int)                           {}
func (Nop) IncrementProbeErrors(string)                      {}
func (Nop) IncrementBlockingTasks(string)                    {}
func (Nop) IncrementHTTPRequests(string, string, string)     {}
func (Nop) RecordHTTPDuration(string, string, time.Duration) {}
