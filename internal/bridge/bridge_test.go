package bridge

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	metricsmocks "github.com/anstrom/ragescanner/internal/metrics/mocks"
	"github.com/anstrom/ragescanner/internal/probe"
	"github.com/anstrom/ragescanner/internal/scanning"
	"github.com/anstrom/ragescanner/internal/workers"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = workers.Config{Size: 8, QueueSize: 32, ShutdownTimeout: 5 * time.Second}
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestBridge(t *testing.T, p probe.Prober, cfg Config, opts ...Option) *Bridge {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	b := New(p, cfg, opts...)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func send(t *testing.T, b *Bridge, cmd Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Send(ctx, cmd))
}

// collect reads events until n terminal events have been seen.
func collect(t *testing.T, events <-chan scanning.Event, n int) []scanning.Event {
	t.Helper()
	timeout := time.After(10 * time.Second)

	var out []scanning.Event
	for n > 0 {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed after %d events", len(out))
			}
			out = append(out, ev)
			if ev.IsTerminal() {
				n--
			}
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
		}
	}
	return out
}

func count(events []scanning.Event, typ scanning.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// blockingLAN returns a fake whose pings wait for release to be closed.
func blockingLAN() (*probe.Fake, chan struct{}) {
	f := probe.NewFake()
	release := make(chan struct{})
	f.OnPing = func(netip.Addr) { <-release }
	return f, release
}

func TestBridgeTextScan(t *testing.T) {
	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig())
	send(t, b, StartScan("192.168.1.1-3"))

	events := collect(t, b.Events(), 1)
	assert.Equal(t, 3, count(events, scanning.EventScanUpdate))
	assert.Equal(t, scanning.EventScanComplete, events[len(events)-1].Type)

	id := events[0].ScanID
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, id, ev.ScanID)
	}

	status := b.Status()
	assert.False(t, status.Active)
	assert.Equal(t, id, status.ScanID)
	assert.Equal(t, uint8(100), status.Progress)
	assert.Equal(t, 3, status.Results)
	assert.Equal(t, scanning.EventScanComplete, status.Outcome)
	assert.Equal(t, "192.168.1.1-192.168.1.3", status.Range)
}

func TestBridgeTypedAndTextFormsAgree(t *testing.T) {
	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig())

	send(t, b, StartScan("192.168.1.1-2"))
	text := collect(t, b.Events(), 1)

	send(t, b, StartScanRange(netip.MustParseAddr("192.168.1.1"), netip.MustParseAddr("192.168.1.2")))
	typed := collect(t, b.Events(), 1)

	assert.Equal(t, count(text, scanning.EventScanUpdate), count(typed, scanning.EventScanUpdate))
	assert.NotEqual(t, text[0].ScanID, typed[0].ScanID)
	assert.Equal(t, "192.168.1.1-192.168.1.2", b.Status().Range)
}

func TestBridgeInvalidRange(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"reversed text", StartScan("10.0.0.10-5")},
		{"garbage text", StartScan("not-an-ip")},
		{"reversed typed", StartScanRange(netip.MustParseAddr("10.0.0.9"), netip.MustParseAddr("10.0.0.1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := probe.NewFake()
			b := newTestBridge(t, f, testConfig())
			send(t, b, tt.cmd)

			events := collect(t, b.Events(), 1)
			require.Len(t, events, 1)
			assert.Equal(t, scanning.EventError, events[0].Type)
			assert.True(t, errors.IsCode(events[0].Err, errors.CodeInvalidRange))
			assert.Zero(t, f.Calls(probe.NamePing))
			assert.False(t, b.Status().Active)
		})
	}
}

func TestBridgeRejectsConcurrentScan(t *testing.T) {
	f, release := blockingLAN()
	b := newTestBridge(t, f, testConfig())

	send(t, b, StartScan("10.0.0.1-4"))
	require.Eventually(t, func() bool { return b.Status().Active }, time.Second, 5*time.Millisecond)
	active := b.Status().ScanID

	send(t, b, StartScan("10.0.1.1-4"))
	rejected := collect(t, b.Events(), 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, scanning.EventError, rejected[0].Type)
	assert.True(t, errors.IsCode(rejected[0].Err, errors.CodeScanInProgress))
	assert.NotEqual(t, active, rejected[0].ScanID)

	close(release)
	events := collect(t, b.Events(), 1)
	assert.Equal(t, 4, count(events, scanning.EventScanUpdate))
	assert.Equal(t, scanning.EventScanComplete, events[len(events)-1].Type)
	for _, ev := range events {
		assert.Equal(t, active, ev.ScanID)
		if ev.Result != nil {
			assert.True(t, ev.Result.IP.Is4())
			assert.Equal(t, byte(0), ev.Result.IP.As4()[2], "only the first scan's targets are probed")
		}
	}
}

func TestBridgeStopScan(t *testing.T) {
	f, release := blockingLAN()
	cfg := testConfig()
	cfg.Scanning.Concurrency = 1
	b := newTestBridge(t, f, cfg)

	send(t, b, StartScan("10.0.0.1-50"))
	require.Eventually(t, func() bool { return f.Calls(probe.NamePing) == 1 }, time.Second, 5*time.Millisecond)

	send(t, b, StopScan())
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.token != nil && b.token.Cancelled()
	}, time.Second, 5*time.Millisecond)
	close(release)

	events := collect(t, b.Events(), 1)
	assert.Equal(t, 1, count(events, scanning.EventScanUpdate))
	assert.Equal(t, scanning.EventScanCancelled, events[len(events)-1].Type)
	assert.Equal(t, scanning.EventScanCancelled, b.Status().Outcome)
	assert.Equal(t, 1, f.Calls(probe.NamePing))
}

func TestBridgeStopWithoutScanIsIgnored(t *testing.T) {
	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig())

	send(t, b, StopScan())
	send(t, b, StartScan("192.168.1.1"))

	events := collect(t, b.Events(), 1)
	assert.Equal(t, 1, count(events, scanning.EventScanUpdate))
	assert.Equal(t, scanning.EventScanComplete, events[len(events)-1].Type)
}

func TestBridgeSequentialScans(t *testing.T) {
	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig())

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		send(t, b, StartScan("192.168.1.1-3"))
		events := collect(t, b.Events(), 1)
		assert.Equal(t, 3, count(events, scanning.EventScanUpdate))
		ids[events[0].ScanID] = true
	}
	assert.Len(t, ids, 3)
}

func TestBridgeStartAfterTerminal(t *testing.T) {
	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig())

	send(t, b, StartScan("192.168.1.1"))
	collect(t, b.Events(), 1)

	// The slot is free as soon as the terminal event is visible.
	assert.False(t, b.Status().Active)
	send(t, b, StartScan("192.168.1.2"))
	events := collect(t, b.Events(), 1)
	assert.Equal(t, scanning.EventScanComplete, events[len(events)-1].Type)
}

func TestBridgeEngineInitFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Workers.Size = 0
	f := probe.NewFake()
	b := newTestBridge(t, f, cfg)

	events := collect(t, b.Events(), 1)
	require.Len(t, events, 1)
	assert.Equal(t, scanning.EventError, events[0].Type)
	assert.True(t, errors.IsCode(events[0].Err, errors.CodeEngineInit))

	// The intake stays open but nothing happens.
	send(t, b, StartScan("10.0.0.1"))
	assert.NoError(t, b.TrySend(StopScan()))
	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, f.Calls(probe.NamePing))
}

func TestBridgeSubscribersSeeEverything(t *testing.T) {
	b := newTestBridge(t, probe.NewFake(), testConfig())
	slow := b.Subscribe()
	defer slow.Close()

	send(t, b, StartScan("10.0.0.1-10.0.0.250"))
	fast := collect(t, b.Events(), 1)
	assert.Equal(t, 250, count(fast, scanning.EventScanUpdate))

	// Nothing was read from slow during the scan; all of it is queued.
	queued := collect(t, slow.C(), 1)
	require.Equal(t, len(fast), len(queued))
	for i := range fast {
		assert.Equal(t, fast[i].Type, queued[i].Type)
	}
}

func TestBridgeSubscriptionClose(t *testing.T) {
	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig())
	sub := b.Subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	b.mu.RLock()
	_, attached := b.subs[sub.ID()]
	b.mu.RUnlock()
	assert.False(t, attached)

	send(t, b, StartScan("192.168.1.1"))
	collect(t, b.Events(), 1)
}

func TestBridgeClose(t *testing.T) {
	f, release := blockingLAN()
	cfg := testConfig()
	cfg.Scanning.Concurrency = 1
	b := New(f, cfg, WithLogger(logging.Discard()))

	require.NoError(t, b.Send(context.Background(), StartScan("10.0.0.1-20")))
	require.Eventually(t, func() bool { return f.Calls(probe.NamePing) == 1 }, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Close()
	}()
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.closing
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	events := collect(t, b.Events(), 1)
	assert.Equal(t, scanning.EventScanCancelled, events[len(events)-1].Type)

	_, ok := <-b.Events()
	assert.False(t, ok, "event stream closes after shutdown")

	assert.Error(t, b.Send(context.Background(), StartScan("10.0.0.1")))
	assert.Error(t, b.TrySend(StopScan()))
	assert.NoError(t, b.Close())

	late := b.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
}

func TestBridgeSendHonoursContext(t *testing.T) {
	cfg := testConfig()
	cfg.Workers.Size = 0
	cfg.CommandBuffer = 1
	b := newTestBridge(t, probe.NewFake(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context either loses the race to a free slot or returns its error.
	err := b.Send(ctx, StopScan())
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestBridgeMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := metricsmocks.NewMockRecorder(ctrl)

	rec.EXPECT().SetActiveScans(1).Times(1)
	rec.EXPECT().SetActiveScans(0).Times(1)
	rec.EXPECT().IncrementScansTotal("complete").Times(1)
	rec.EXPECT().RecordScanDuration(gomock.Any()).Times(1)
	rec.EXPECT().SetTargetsInFlight(gomock.Any()).AnyTimes()
	rec.EXPECT().IncrementHostsScanned(gomock.Any()).Times(2)
	rec.EXPECT().RecordHostDuration(gomock.Any()).Times(2)
	rec.EXPECT().IncrementOpenPorts("HTTP", 1).Times(1)
	rec.EXPECT().IncrementProbeErrors(probe.NamePing).Times(1)
	rec.EXPECT().IncrementBlockingTasks(gomock.Any()).AnyTimes()

	b := newTestBridge(t, probe.NewSimulatedLAN(), testConfig(), WithMetrics(rec))
	send(t, b, StartScan("192.168.1.1-2"))
	collect(t, b.Events(), 1)
}

func TestCommandRange(t *testing.T) {
	rng, err := StartScan("192.168.1.1-50").Range()
	require.NoError(t, err)
	typed, err := StartScanRange(netip.MustParseAddr("192.168.1.1"), netip.MustParseAddr("192.168.1.50")).Range()
	require.NoError(t, err)
	assert.Equal(t, typed, rng)

	_, err = StopScan().Range()
	assert.Error(t, err)

	assert.Equal(t, "start_scan(10.0.0.1-5)", StartScan("10.0.0.1-5").String())
	assert.Equal(t, "stop_scan", StopScan().String())
}
