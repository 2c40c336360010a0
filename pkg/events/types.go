package events

import (
	"encoding/json"
	"time"
)

// Event name constants
const (
	// Snapshot carries a telemetry.Snapshot, published on every sampler tick.
	Snapshot = "snapshot"
	// ChargerConnected is published on the tick a charging session starts.
	ChargerConnected = "charger.connected"
	// ChargerDisconnected is published on the tick a charging session ends.
	ChargerDisconnected = "charger.disconnected"
	// ExtremaReset is published when the user resets the session extrema.
	ExtremaReset = "extrema.reset"
)

// Event is one message pushed to stream subscribers.
type Event struct {
	Name string          `json:"name"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SessionEvent is the payload of the charger events.
type SessionEvent struct {
	SessionID  string  `json:"sessionId,omitempty"`
	PowerWatts float64 `json:"powerWatts"`
	Ts         int64   `json:"ts"`
}

// NewEvent marshals payload into an event.
func NewEvent(name string, t time.Time, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Time: t, Data: b}, nil
}

// DecodeAs decodes the event payload into T. Empty data gives the zero value.
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
