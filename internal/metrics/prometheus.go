// Package metrics provides Prometheus-based metrics collection for ragescanner.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all ragescanner metrics
	namespace = "ragescanner"

	// Subsystems
	subsystemScan    = "scan"
	subsystemHost    = "host"
	subsystemWorkers = "workers"
	subsystemSystem  = "system"
	subsystemAPI     = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	activeScans  prometheus.Gauge

	// Host metrics
	hostsScanned  *prometheus.CounterVec
	hostDuration  prometheus.Histogram
	openPorts     *prometheus.CounterVec
	probeErrors   *prometheus.CounterVec
	targetsActive prometheus.Gauge

	// Worker metrics
	blockingTasks *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initHostMetrics()
	pm.initWorkerMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans by outcome",
		},
		[]string{"outcome"},
	)

	pm.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scans in seconds",
			Buckets:   []float64{0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0},
		},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently active scans",
		},
	)
}

func (pm *PrometheusMetrics) initHostMetrics() {
	pm.hostsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemHost,
			Name:      "total",
			Help:      "Total number of targets scanned by final status",
		},
		[]string{"status"},
	)

	pm.hostDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemHost,
			Name:      "duration_seconds",
			Help:      "Duration of a single target pipeline in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
	)

	pm.openPorts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemHost,
			Name:      "open_ports_total",
			Help:      "Total number of open well-known ports found by service",
		},
		[]string{"service"},
	)

	pm.probeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemHost,
			Name:      "probe_errors_total",
			Help:      "Total number of failed probe calls by probe",
		},
		[]string{"probe"},
	)

	pm.targetsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemHost,
			Name:      "in_flight",
			Help:      "Number of admitted targets whose pipeline has not finished",
		},
	)
}

func (pm *PrometheusMetrics) initWorkerMetrics() {
	pm.blockingTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "tasks_total",
			Help:      "Total number of blocking pool tasks by status",
		},
		[]string{"status"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.activeScans,
		pm.hostsScanned,
		pm.hostDuration,
		pm.openPorts,
		pm.probeErrors,
		pm.targetsActive,
		pm.blockingTasks,
		pm.httpRequests,
		pm.httpDuration,
		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// IncrementScansTotal increments the total scan counter
func (pm *PrometheusMetrics) IncrementScansTotal(outcome string) {
	pm.scansTotal.WithLabelValues(outcome).Inc()
}

// RecordScanDuration records a scan duration
func (pm *PrometheusMetrics) RecordScanDuration(duration time.Duration) {
	pm.scanDuration.Observe(duration.Seconds())
}

// SetActiveScans sets the number of active scans
func (pm *PrometheusMetrics) SetActiveScans(count int) {
	pm.activeScans.Set(float64(count))
}

// IncrementHostsScanned increments hosts scanned counter
func (pm *PrometheusMetrics) IncrementHostsScanned(status string) {
	pm.hostsScanned.WithLabelValues(status).Inc()
}

// RecordHostDuration records a target pipeline duration
func (pm *PrometheusMetrics) RecordHostDuration(duration time.Duration) {
	pm.hostDuration.Observe(duration.Seconds())
}

// IncrementOpenPorts increments the open port counter for a service
func (pm *PrometheusMetrics) IncrementOpenPorts(service string, count int) {
	pm.openPorts.WithLabelValues(service).Add(float64(count))
}

// SetTargetsInFlight sets the number of in-flight targets
func (pm *PrometheusMetrics) SetTargetsInFlight(count int) {
	pm.targetsActive.Set(float64(count))
}

// IncrementProbeErrors increments the probe error counter
func (pm *PrometheusMetrics) IncrementProbeErrors(probe string) {
	pm.probeErrors.WithLabelValues(probe).Inc()
}

// IncrementBlockingTasks increments the blocking task counter
func (pm *PrometheusMetrics) IncrementBlockingTasks(status string) {
	pm.blockingTasks.WithLabelValues(status).Inc()
}

// IncrementHTTPRequests increments HTTP request counter
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())

	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates refreshes system metrics every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}
