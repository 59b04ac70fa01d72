// Package scanning provides the core scan engine for ragescanner.
//
// This package turns an inclusive IPv4 range into a stream of per-host
// results. It owns range parsing, the admission gate that bounds how many
// targets are probed at once, the per-target probe pipeline and the event
// types that carry results to frontends.
//
// # Overview
//
// The engine is built around the Request structure, which names a scan and
// the Range it covers, and the Result structure, which describes one host.
// Engine.Run executes a request and reports on a caller-supplied channel.
//
// # Main Components
//
// ## Ranges
//
//   - Range: inclusive span of IPv4 addresses, Start <= End
//   - NewRange: validate an address pair
//   - ParseRange: parse "10.0.0.1", "10.0.0.1-10.0.0.9" or "10.0.0.1-9"
//
// ## Execution
//
//   - Engine: runs scans over a probe.Prober and a workers.Pool
//   - CancelToken: cooperative stop request consulted at admission
//   - FixedGate: semaphore bounding in-flight targets
//
// ## Events
//
// Every run produces, in order of completion:
//   - one ScanUpdate per admitted target, carrying its Result
//   - Progress events with strictly increasing floored percentages
//   - exactly one terminal event: ScanComplete, ScanCancelled or Error
//
// # Per-Target Pipeline
//
// Each admitted target is pinged and its link-layer address resolved. A
// resolved address marks the host online even when the ping went
// unanswered, and triggers hostname and vendor lookups. Online hosts then
// have the well-known port table probed concurrently; open ports are
// reported in table order. A probe failure or panic puts the host in the
// error state without affecting other targets.
//
// # Usage Examples
//
//	rng, err := scanning.ParseRange("192.168.1.1-254")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine := scanning.NewEngine(prober, pool, scanning.DefaultConfig())
//	events := make(chan scanning.Event, 100)
//	token := scanning.NewCancelToken()
//
//	go engine.Run(ctx, scanning.Request{ID: "scan-1", Range: rng}, token, events)
//
//	for ev := range events {
//		if ev.Type == scanning.EventScanUpdate {
//			fmt.Println(ev.Result.IP, ev.Result.StatusText())
//		}
//		if ev.IsTerminal() {
//			break
//		}
//	}
//
// # Cancellation
//
// Cancellation is cooperative. Once a CancelToken is set no new target is
// admitted, targets already admitted finish and report normally, and the run
// ends with ScanCancelled.
package scanning
