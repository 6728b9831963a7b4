package dispatch

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of a named event: {"event": "...", "args": [...]}.
// Args are positional and decoded lazily by the handler bound to Event.
type Envelope struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args,omitempty"`
}

// NewEnvelope encodes each arg as JSON.
func NewEnvelope(event string, args ...any) (Envelope, error) {
	env := Envelope{Event: event, Args: make([]json.RawMessage, len(args))}
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding arg %d of %q: %w", i, event, err)
		}
		env.Args[i] = raw
	}
	return env, nil
}

// Encode builds an envelope and marshals it in one step.
func Encode(event string, args ...any) ([]byte, error) {
	env, err := NewEnvelope(event, args...)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope rejects malformed JSON and missing event names.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed envelope", Err: err}
	}
	if env.Event == "" {
		return Envelope{}, &DecodeError{Reason: "missing event name"}
	}
	return env, nil
}

// Decode unmarshals the positional arg i into out.
func (e Envelope) Decode(i int, out any) error {
	if i < 0 || i >= len(e.Args) {
		return &DecodeError{Event: e.Event, Reason: fmt.Sprintf("no arg at position %d", i)}
	}
	if err := json.Unmarshal(e.Args[i], out); err != nil {
		return &DecodeError{Event: e.Event, Reason: fmt.Sprintf("arg %d", i), Err: err}
	}
	return nil
}
