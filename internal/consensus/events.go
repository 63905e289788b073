package consensus

import (
	"sync"
	"time"
)

// EventType enumerates the audit trace events emitted during a run.
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventRoundStarted     EventType = "round_started"
	EventRequestIssued    EventType = "request_issued"
	EventResponseReceived EventType = "response_received"
	EventRetryAttempted   EventType = "retry_attempted"
	EventContextTruncated EventType = "context_truncated"
	EventConsensusChecked EventType = "consensus_checked"
	EventRunComplete      EventType = "run_complete"
	EventError            EventType = "error"
)

// Event is one entry of the structured run trace. The presentation layer
// decides how and whether to render it.
type Event struct {
	Type    EventType      `json:"event"`
	Time    time.Time      `json:"timestamp"`
	Round   int            `json:"round,omitempty"`
	Model   string         `json:"model,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Recorder accumulates the event trace and forwards each event to an
// optional sink. Safe for concurrent use so retry hooks can report from
// wrapped providers.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	sink   func(Event)
}

// NewRecorder builds a recorder. sink may be nil.
func NewRecorder(sink func(Event)) *Recorder {
	return &Recorder{sink: sink}
}

// Record appends an event, redacting secrets from payload strings.
func (r *Recorder) Record(typ EventType, round int, model string, payload map[string]any) {
	if r == nil {
		return
	}
	ev := Event{
		Type:    typ,
		Time:    time.Now().UTC(),
		Round:   round,
		Model:   model,
		Payload: redactPayload(payload),
	}

	r.mu.Lock()
	r.events = append(r.events, ev)
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

// Trace returns a copy of the accumulated events.
func (r *Recorder) Trace() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
