package events

import "encoding/json"

// Event name constants
const (
	CycleCompleted  = "cycle.completed"
	StatusChanged   = "status.changed"
	CommandReceived = "command.received"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// CycleCompletedEvent is the typed payload for cycle.completed.
type CycleCompletedEvent struct {
	Seq        uint64          `json:"seq"`
	Overall    string          `json:"overall"`
	Light      string          `json:"light"`
	Record     json.RawMessage `json:"record"`
	Published  bool            `json:"published"`
	Fallback   bool            `json:"fallback,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Ts         int64           `json:"ts"`
}

// StatusChangedEvent is the typed payload for status.changed.
type StatusChangedEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// CommandReceivedEvent is the typed payload for command.received.
type CommandReceivedEvent struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.StatusChangedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.From, payload.To)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
