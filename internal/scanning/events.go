package scanning

import (
	"encoding/json"
	"time"

	"github.com/anstrom/ragescanner/internal/errors"
)

// EventType identifies the kind of an outbound event.
type EventType string

const (
	EventScanUpdate    EventType = "scan_update"
	EventProgress      EventType = "progress"
	EventScanComplete  EventType = "scan_complete"
	EventScanCancelled EventType = "scan_cancelled"
	EventError         EventType = "error"
)

// Event is a single message from a scan to its observers. Exactly one of
// Result, Progress or Err is meaningful, depending on Type.
type Event struct {
	Type      EventType
	ScanID    string
	Result    *Result
	Progress  uint8
	Err       error
	Timestamp time.Time
}

// IsTerminal reports whether no further events follow for this scan.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventScanComplete, EventScanCancelled, EventError:
		return true
	default:
		return false
	}
}

// NewScanUpdate wraps a finished result.
func NewScanUpdate(scanID string, r *Result) Event {
	return Event{Type: EventScanUpdate, ScanID: scanID, Result: r, Timestamp: time.Now()}
}

// NewProgress reports the completed percentage of a scan.
func NewProgress(scanID string, percent uint8) Event {
	return Event{Type: EventProgress, ScanID: scanID, Progress: percent, Timestamp: time.Now()}
}

// NewScanComplete marks a scan that admitted every target.
func NewScanComplete(scanID string) Event {
	return Event{Type: EventScanComplete, ScanID: scanID, Timestamp: time.Now()}
}

// NewScanCancelled marks a scan that stopped admitting targets after a stop request.
func NewScanCancelled(scanID string) Event {
	return Event{Type: EventScanCancelled, ScanID: scanID, Timestamp: time.Now()}
}

// NewError reports a scan-level failure.
func NewError(scanID string, err error) Event {
	return Event{Type: EventError, ScanID: scanID, Err: err, Timestamp: time.Now()}
}

type eventJSON struct {
	Type      EventType           `json:"type"`
	ScanID    string              `json:"scan_id,omitempty"`
	Result    *Result             `json:"result,omitempty"`
	Progress  *uint8              `json:"progress,omitempty"`
	Error     *errors.Description `json:"error,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Type:      e.Type,
		ScanID:    e.ScanID,
		Result:    e.Result,
		Error:     errors.Describe(e.Err),
		Timestamp: e.Timestamp,
	}
	if e.Type == EventProgress {
		p := e.Progress
		out.Progress = &p
	}
	return json.Marshal(out)
}
