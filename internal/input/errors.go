package input

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a payload could not be decoded.
type ErrorKind int

const (
	KindMalformed ErrorKind = iota + 1
	KindInvalidTime
	KindInvalidEventType
	KindInvalidPayload
	KindInvalidName
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindInvalidTime:
		return "invalid time"
	case KindInvalidEventType:
		return "invalid event type"
	case KindInvalidPayload:
		return "invalid payload"
	case KindInvalidName:
		return "invalid name"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for errors.Is matching against a *DecodeError.
var (
	ErrMalformed        = errors.New("malformed payload")
	ErrInvalidTime      = errors.New("invalid time")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidPayload   = errors.New("invalid event payload")
	ErrInvalidName      = errors.New("invalid name")
)

var kindSentinels = map[ErrorKind]error{
	KindMalformed:        ErrMalformed,
	KindInvalidTime:      ErrInvalidTime,
	KindInvalidEventType: ErrInvalidEventType,
	KindInvalidPayload:   ErrInvalidPayload,
	KindInvalidName:      ErrInvalidName,
}

// DecodeError reports a payload that could not be turned into a Record.
type DecodeError struct {
	Kind ErrorKind
	// Field names the offending part of the payload, e.g. "time.nanos_since_epoch".
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode input event: " + e.Kind.String()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *DecodeError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func decodeErr(kind ErrorKind, field, reason string, cause error) *DecodeError {
	return &DecodeError{Kind: kind, Field: field, Reason: reason, Err: cause}
}

// CallbackError reports the callback that failed during dispatch.
type CallbackError struct {
	// Index is the callback's registration position.
	Index int
	Tag   Tag
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("dispatch %s to callback #%d: %v", e.Tag, e.Index, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// ErrCallbackPanic wraps a panic recovered under ContinueOnError.
var ErrCallbackPanic = errors.New("callback panicked")
