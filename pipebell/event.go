package pipebell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// State is a pseudo-enum representing the lifecycle state of a pipeline.
// Any string is accepted; only the known states below are decorated with an image.
type State string

const (
	// NOTE: this list must be kept in sync with method Known() and with
	// the keys accepted in the [images] section of the configuration file.

	StateStarted   State = "STARTED"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCanceled  State = "CANCELED"
)

// KnownStates returns the states that can be decorated with an image.
func KnownStates() []State {
	return []State{StateStarted, StateSucceeded, StateFailed, StateCanceled}
}

// Known returns true if state is one of [KnownStates].
func (state State) Known() bool {
	switch state {
	case StateStarted, StateSucceeded, StateFailed, StateCanceled:
		return true
	}
	return false
}

// Event is the pipeline lifecycle event received by one invocation.
type Event struct {
	State    State  `json:"state"`
	Pipeline string `json:"pipeline"`
}

// ParseEvent decodes one JSON event from in. Unknown keys are ignored, since the
// event source usually sends a richer record than the two fields we need.
// A missing key is not an error here; see [Event.Validate]. A key holding a
// number, a boolean or any other non-string value is taken as its JSON text, so
// that {"state": 42} is still notified as state 42.
func ParseEvent(in io.Reader) (Event, error) {
	var event Event
	dec := json.NewDecoder(in)
	if err := dec.Decode(&event); err != nil {
		return Event{}, fmt.Errorf("parsing event JSON: %s", err)
	}
	return event, nil
}

// UnmarshalJSON implements json.Unmarshaler, decoding the fields leniently.
func (event *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		State    json.RawMessage `json:"state"`
		Pipeline json.RawMessage `json:"pipeline"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state, err := scalarText(raw.State)
	if err != nil {
		return fmt.Errorf("state: %s", err)
	}
	pipeline, err := scalarText(raw.Pipeline)
	if err != nil {
		return fmt.Errorf("pipeline: %s", err)
	}
	*event = Event{State: State(state), Pipeline: pipeline}
	return nil
}

// scalarText returns the contents of a JSON string, or the compact JSON text of
// any other value. A missing value or null becomes the empty string.
func scalarText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var text string
		err := json.Unmarshal(raw, &text)
		return text, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Validate reports the missing (or empty) keys of event.
func (event Event) Validate() error {
	var missing []string
	if event.State == "" {
		missing = append(missing, "state")
	}
	if event.Pipeline == "" {
		missing = append(missing, "pipeline")
	}
	if len(missing) > 0 {
		return fmt.Errorf("event: missing keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LogValue implements slog.LogValuer.
func (event Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("state", string(event.State)),
		slog.String("pipeline", event.Pipeline))
}
