package input

import (
	"errors"
	"fmt"
	"sync"
)

// Callback consumes one delivered record. A non-nil error is reported to
// whoever drives dispatch.
type Callback func(Record) error

// Policy decides what Dispatch does when a callback fails.
type Policy int

const (
	// AbortOnError stops delivery of the current record at the first failing
	// callback and returns its error. Panics are not recovered.
	AbortOnError Policy = iota
	// ContinueOnError calls every callback, recovering panics, and returns
	// all failures joined.
	ContinueOnError
)

func (p Policy) String() string {
	switch p {
	case AbortOnError:
		return "abort"
	case ContinueOnError:
		return "continue"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy maps "abort" or "continue" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "abort":
		return AbortOnError, nil
	case "continue":
		return ContinueOnError, nil
	}
	return AbortOnError, fmt.Errorf("unknown dispatch policy %q", s)
}

// Registry holds the callbacks that receive every decoded record.
//
// Construct one per capture session and hand it to whatever drives the
// capture loop. Registration is append-only and safe to call concurrently
// with Dispatch.
type Registry struct {
	mu        sync.RWMutex
	callbacks []Callback
	policy    Policy
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPolicy sets the callback failure policy. The default is AbortOnError.
func WithPolicy(p Policy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends cb. The same callback may be registered more than once
// and is then called once per registration. A nil callback is ignored.
func (r *Registry) Register(cb Callback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	r.callbacks = append(r.callbacks, cb)
	r.mu.Unlock()
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// Policy returns the registry's failure policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Dispatch calls every registered callback with rec, in registration order,
// on the calling goroutine. Callbacks registered while a dispatch is running
// are first called for the next record.
func (r *Registry) Dispatch(rec Record) error {
	r.mu.RLock()
	callbacks := r.callbacks[:len(r.callbacks):len(r.callbacks)]
	r.mu.RUnlock()

	if r.policy == ContinueOnError {
		var errs []error
		for i, cb := range callbacks {
			if err := callIsolated(cb, rec); err != nil {
				errs = append(errs, &CallbackError{Index: i, Tag: rec.Tag(), Err: err})
			}
		}
		return errors.Join(errs...)
	}

	for i, cb := range callbacks {
		if err := cb(rec); err != nil {
			return &CallbackError{Index: i, Tag: rec.Tag(), Err: err}
		}
	}
	return nil
}

func callIsolated(cb Callback, rec Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, p)
		}
	}()
	return cb(rec)
}

// Deliver decodes payload and dispatches the resulting record. Decode
// failures are returned as *DecodeError and reach no callback.
func Deliver(r *Registry, payload []byte) error {
	rec, err := Decode(payload)
	if err != nil {
		return err
	}
	return r.Dispatch(rec)
}
