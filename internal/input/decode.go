package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"unicode/utf8"
)

var (
	errNotNumber  = errors.New("not a number")
	errFractional = errors.New("fractional value")
	errOutOfRange = errors.New("value out of range")
)

// Decode converts one serialized capture payload into a Record.
//
// The payload is a JSON object with "time", "name" and "event_type". Checks
// run in a fixed order (structure, time, event_type, payload, name) and the
// first failure is returned as a *DecodeError. A tag outside the six known
// ones is not an error: it yields an Unrecognized event with the payload kept
// verbatim. Decode holds no state and is safe for concurrent use.
func Decode(payload []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Record{}, decodeErr(KindMalformed, "", "payload is not a JSON object", err)
	}
	if fields == nil {
		return Record{}, decodeErr(KindMalformed, "", "payload is null", nil)
	}

	ts, err := decodeTime(fields["time"])
	if err != nil {
		return Record{}, err
	}

	tag, raw, err := decodeEventType(fields["event_type"])
	if err != nil {
		return Record{}, err
	}

	event, err := decodeEvent(tag, raw)
	if err != nil {
		return Record{}, err
	}

	name, err := decodeName(fields["name"])
	if err != nil {
		return Record{}, err
	}

	return Record{Time: ts, Name: name, Event: event}, nil
}

// DecodeString is Decode for string payloads.
func DecodeString(payload string) (Record, error) {
	return Decode([]byte(payload))
}

func decodeTime(raw json.RawMessage) (Timestamp, error) {
	if isAbsent(raw) {
		return Timestamp{}, decodeErr(KindInvalidTime, "time", "missing", nil)
	}
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return Timestamp{}, decodeErr(KindInvalidTime, "time", "not an object", err)
	}

	secsRaw, ok := parts["secs_since_epoch"]
	if !ok {
		return Timestamp{}, decodeErr(KindInvalidTime, "time.secs_since_epoch", "missing", nil)
	}
	nanosRaw, ok := parts["nanos_since_epoch"]
	if !ok {
		return Timestamp{}, decodeErr(KindInvalidTime, "time.nanos_since_epoch", "missing", nil)
	}

	secs, err := parseInt(secsRaw, math.MinInt64, math.MaxInt64)
	if err != nil {
		return Timestamp{}, decodeErr(KindInvalidTime, "time.secs_since_epoch", "not an integer", err)
	}
	nanos, err := parseInt(nanosRaw, math.MinInt64, math.MaxInt64)
	if err != nil {
		return Timestamp{}, decodeErr(KindInvalidTime, "time.nanos_since_epoch", "not an integer", err)
	}
	return Timestamp{Secs: secs, Nanos: nanos}, nil
}

func decodeEventType(raw json.RawMessage) (string, json.RawMessage, error) {
	if isAbsent(raw) {
		return "", nil, decodeErr(KindInvalidEventType, "event_type", "missing", nil)
	}
	if firstByte(raw) != '{' {
		return "", nil, decodeErr(KindInvalidEventType, "event_type", "not an object", nil)
	}
	var variants map[string]json.RawMessage
	if err := json.Unmarshal(raw, &variants); err != nil {
		return "", nil, decodeErr(KindInvalidEventType, "event_type", "not an object", err)
	}
	// The map collapses repeated keys; count members on the raw object.
	members, err := countMembers(raw)
	if err != nil {
		return "", nil, decodeErr(KindInvalidEventType, "event_type", "not an object", err)
	}
	if members != 1 {
		return "", nil, decodeErr(KindInvalidEventType, "event_type",
			"expected exactly one key, got "+strconv.Itoa(members), nil)
	}
	var tag string
	var payload json.RawMessage
	for k, v := range variants {
		tag, payload = k, v
	}
	return tag, payload, nil
}

func decodeEvent(tag string, raw json.RawMessage) (Event, error) {
	field := "event_type." + tag
	switch Tag(tag) {
	case TagKeyPress:
		key, err := decodeKeyCode(field, raw)
		if err != nil {
			return nil, err
		}
		return KeyPress{Key: key}, nil
	case TagKeyRelease:
		key, err := decodeKeyCode(field, raw)
		if err != nil {
			return nil, err
		}
		return KeyRelease{Key: key}, nil
	case TagButtonPress:
		button, err := decodeButtonCode(field, raw)
		if err != nil {
			return nil, err
		}
		return ButtonPress{Button: button}, nil
	case TagButtonRelease:
		button, err := decodeButtonCode(field, raw)
		if err != nil {
			return nil, err
		}
		return ButtonRelease{Button: button}, nil
	case TagMouseMove:
		var p Point
		if err := decodeIntPair(field, raw, "x", "y", &p.X, &p.Y); err != nil {
			return nil, err
		}
		return MouseMove{Point: p}, nil
	case TagWheel:
		var d WheelDelta
		if err := decodeIntPair(field, raw, "delta_x", "delta_y", &d.DeltaX, &d.DeltaY); err != nil {
			return nil, err
		}
		return Wheel{WheelDelta: d}, nil
	default:
		return Unrecognized{Name: tag, Raw: raw}, nil
	}
}

func decodeKeyCode(field string, raw json.RawMessage) (KeyCode, error) {
	switch firstByte(raw) {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return KeyCode{}, decodeErr(KindInvalidPayload, field, "bad key string", err)
		}
		if code, ok := parseDebugCode(name); ok {
			return UnknownKeyAs(code, FormDebug), nil
		}
		key, ok := LookupKey(name)
		if !ok {
			return KeyCode{}, decodeErr(KindInvalidPayload, field, "unrecognized key name "+strconv.Quote(name), nil)
		}
		return NamedKey(key), nil
	default:
		code, form, err := decodeRawCode(field, raw)
		if err != nil {
			return KeyCode{}, err
		}
		return UnknownKeyAs(code, form), nil
	}
}

func decodeButtonCode(field string, raw json.RawMessage) (ButtonCode, error) {
	switch firstByte(raw) {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return ButtonCode{}, decodeErr(KindInvalidPayload, field, "bad button string", err)
		}
		if code, ok := parseDebugCode(name); ok {
			return UnknownButtonAs(code, FormDebug), nil
		}
		button, ok := LookupButton(name)
		if !ok {
			return ButtonCode{}, decodeErr(KindInvalidPayload, field, "unrecognized button name "+strconv.Quote(name), nil)
		}
		return NamedButton(button), nil
	default:
		code, form, err := decodeRawCode(field, raw)
		if err != nil {
			return ButtonCode{}, err
		}
		return UnknownButtonAs(code, form), nil
	}
}

// decodeRawCode accepts a bare integer or the {"Unknown": <int>} form and
// reports which one it saw.
func decodeRawCode(field string, raw json.RawMessage) (uint32, CodeForm, error) {
	form := FormNumber
	if firstByte(raw) == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, 0, decodeErr(KindInvalidPayload, field, "bad code object", err)
		}
		inner, ok := obj["Unknown"]
		if !ok || len(obj) != 1 {
			return 0, 0, decodeErr(KindInvalidPayload, field, `expected {"Unknown": <code>}`, nil)
		}
		raw = inner
		field += ".Unknown"
		form = FormTagged
	}
	code, err := parseInt(raw, 0, math.MaxUint32)
	if err != nil {
		return 0, 0, decodeErr(KindInvalidPayload, field, "expected key name or raw code", err)
	}
	return uint32(code), form, nil
}

func decodeIntPair(field string, raw json.RawMessage, xKey, yKey string, x, y *int64) error {
	if firstByte(raw) != '{' {
		return decodeErr(KindInvalidPayload, field, "expected an object", nil)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return decodeErr(KindInvalidPayload, field, "expected an object", err)
	}
	for _, part := range []struct {
		key string
		dst *int64
	}{{xKey, x}, {yKey, y}} {
		v, ok := obj[part.key]
		if !ok {
			return decodeErr(KindInvalidPayload, field+"."+part.key, "missing", nil)
		}
		n, err := parseInt(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return decodeErr(KindInvalidPayload, field+"."+part.key, "not an integer", err)
		}
		*part.dst = n
	}
	return nil
}

func decodeName(raw json.RawMessage) (*string, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	if firstByte(raw) != '"' {
		return nil, decodeErr(KindInvalidName, "name", "expected a string or null", nil)
	}
	if !utf8.Valid(raw) {
		return nil, decodeErr(KindInvalidName, "name", "invalid UTF-8", nil)
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return nil, decodeErr(KindInvalidName, "name", "bad string", err)
	}
	return &name, nil
}

// parseInt reads a JSON number that holds an integral value within [lo, hi].
// Integral floats such as 100.0 or 1e3 are accepted.
func parseInt(raw json.RawMessage, lo, hi int64) (int64, error) {
	var num json.Number
	if c := firstByte(raw); c != '-' && (c < '0' || c > '9') {
		return 0, errNotNumber
	}
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, err
	}
	if n, err := num.Int64(); err == nil {
		if n < lo || n > hi {
			return 0, errOutOfRange
		}
		return n, nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, errOutOfRange
	}
	if f != math.Trunc(f) {
		return 0, errFractional
	}
	if f < float64(lo) || f >= float64(hi)+1 {
		return 0, errOutOfRange
	}
	return int64(f), nil
}

// countMembers returns the number of members of a JSON object, repeated
// keys included.
func countMembers(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return 0, err
	}
	n := 0
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return 0, err
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
