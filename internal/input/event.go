package input

import (
	"encoding/json"
	"slices"
	"time"
)

// Tag discriminates InputEvent variants on the wire and in the consumer shape.
type Tag string

const (
	TagKeyPress      Tag = "KeyPress"
	TagKeyRelease    Tag = "KeyRelease"
	TagButtonPress   Tag = "ButtonPress"
	TagButtonRelease Tag = "ButtonRelease"
	TagMouseMove     Tag = "MouseMove"
	TagWheel         Tag = "Wheel"
)

// KnownTags lists the six tags the decoder parses into typed payloads.
var KnownTags = []Tag{
	TagKeyPress,
	TagKeyRelease,
	TagButtonPress,
	TagButtonRelease,
	TagMouseMove,
	TagWheel,
}

// Known reports whether t is one of the six typed tags.
func (t Tag) Known() bool {
	return slices.Contains(KnownTags, t)
}

// Timestamp is a capture-time instant as reported by the native layer.
// Nanos is kept verbatim, even outside [0, 999999999].
type Timestamp struct {
	Secs  int64 `json:"secs_since_epoch"`
	Nanos int64 `json:"nanos_since_epoch"`
}

// Time converts the timestamp to a time.Time. Out-of-range nanoseconds
// are folded into seconds by time.Unix; the Timestamp itself is untouched.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Secs, ts.Nanos)
}

// Point is a pointer position; off-screen (negative or large) values are valid.
type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// WheelDelta is a scroll amount on both axes.
type WheelDelta struct {
	DeltaX int64 `json:"delta_x"`
	DeltaY int64 `json:"delta_y"`
}

// Event is the closed set of input event variants. Exhaustive type switches
// over Event cover KeyPress, KeyRelease, ButtonPress, ButtonRelease,
// MouseMove, Wheel and Unrecognized.
type Event interface {
	Tag() Tag
	// Value returns the payload in its consumer-facing form.
	Value() any
	isEvent()
}

type KeyPress struct{ Key KeyCode }

type KeyRelease struct{ Key KeyCode }

type ButtonPress struct{ Button ButtonCode }

type ButtonRelease struct{ Button ButtonCode }

type MouseMove struct{ Point }

type Wheel struct{ WheelDelta }

// Unrecognized preserves an event whose tag the decoder does not know,
// with its payload left undecoded.
type Unrecognized struct {
	Name string
	Raw  json.RawMessage
}

func (KeyPress) Tag() Tag      { return TagKeyPress }
func (KeyRelease) Tag() Tag    { return TagKeyRelease }
func (ButtonPress) Tag() Tag   { return TagButtonPress }
func (ButtonRelease) Tag() Tag { return TagButtonRelease }
func (MouseMove) Tag() Tag     { return TagMouseMove }
func (Wheel) Tag() Tag         { return TagWheel }
func (e Unrecognized) Tag() Tag {
	return Tag(e.Name)
}

func (e KeyPress) Value() any      { return e.Key }
func (e KeyRelease) Value() any    { return e.Key }
func (e ButtonPress) Value() any   { return e.Button }
func (e ButtonRelease) Value() any { return e.Button }
func (e MouseMove) Value() any     { return e.Point }
func (e Wheel) Value() any         { return e.WheelDelta }
func (e Unrecognized) Value() any {
	if len(e.Raw) == 0 {
		return json.RawMessage("null")
	}
	return e.Raw
}

func (KeyPress) isEvent()      {}
func (KeyRelease) isEvent()    {}
func (ButtonPress) isEvent()   {}
func (ButtonRelease) isEvent() {}
func (MouseMove) isEvent()     {}
func (Wheel) isEvent()         {}
func (Unrecognized) isEvent()  {}

// Record is one decoded input occurrence as delivered to callbacks.
type Record struct {
	Time Timestamp
	// Name is the layout-resolved text for the key; nil when absent.
	Name  *string
	Event Event
}

// Text returns the layout-resolved text and whether one was present.
func (r Record) Text() (string, bool) {
	if r.Name == nil {
		return "", false
	}
	return *r.Name, true
}

// Tag is shorthand for r.Event.Tag().
func (r Record) Tag() Tag {
	if r.Event == nil {
		return ""
	}
	return r.Event.Tag()
}

type consumerEvent struct {
	Type  Tag `json:"type"`
	Value any `json:"value"`
}

type consumerRecord struct {
	Time  Timestamp     `json:"time"`
	Name  *string       `json:"name"`
	Event consumerEvent `json:"event"`
}

// MarshalJSON encodes the consumer shape:
// {"time": {...}, "name": ..., "event": {"type": <Tag>, "value": <payload>}}.
func (r Record) MarshalJSON() ([]byte, error) {
	out := consumerRecord{Time: r.Time, Name: r.Name}
	if r.Event != nil {
		out.Event = consumerEvent{Type: r.Event.Tag(), Value: r.Event.Value()}
	}
	return json.Marshal(out)
}

type wireRecord struct {
	Time      Timestamp      `json:"time"`
	Name      *string        `json:"name"`
	EventType map[string]any `json:"event_type"`
}

// Wire re-encodes the record in the capture collaborator's shape,
// {"time": {...}, "name": ..., "event_type": {"<Tag>": <payload>}}.
// Decode(r.Wire()) yields a record equal to r.
func (r Record) Wire() ([]byte, error) {
	out := wireRecord{Time: r.Time, Name: r.Name, EventType: map[string]any{}}
	if r.Event != nil {
		out.EventType[string(r.Event.Tag())] = r.Event.Value()
	}
	return json.Marshal(out)
}
