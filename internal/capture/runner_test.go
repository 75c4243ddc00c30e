package capture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inputfeed/internal/input"
	"inputfeed/pkg/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	keyA      = `{"time":{"secs_since_epoch":1695999163,"nanos_since_epoch":1},"name":"a","event_type":{"KeyPress":"KeyA"}}`
	releaseA  = `{"time":{"secs_since_epoch":1695999163,"nanos_since_epoch":2},"name":null,"event_type":{"KeyRelease":"KeyA"}}`
	moveEvent = `{"time":{"secs_since_epoch":1695999163,"nanos_since_epoch":3},"name":null,"event_type":{"MouseMove":{"x":10,"y":-5}}}`
	broken    = `{"time":{"secs_since_epoch":123},"event_type":{"KeyPress":"KeyA"}}`
)

func collect(reg *input.Registry) *[]input.Record {
	var got []input.Record
	reg.Register(func(rec input.Record) error {
		got = append(got, rec)
		return nil
	})
	return &got
}

func TestNewRunnerValidation(t *testing.T) {
	if _, err := NewRunner(Options{Registry: input.NewRegistry()}); err == nil {
		t.Fatalf("expected error without source")
	}
	if _, err := NewRunner(Options{Source: SliceSource{}}); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestRunDeliversInOrder(t *testing.T) {
	reg := input.NewRegistry()
	got := collect(reg)

	src := NewLineSource(strings.NewReader(keyA + "\n\n" + releaseA + "\n" + moveEvent + "\n"))
	runner, err := NewRunner(Options{Source: src, Registry: reg})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Received != 3 || res.Delivered != 3 || res.Malformed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	want := []input.Tag{input.TagKeyPress, input.TagKeyRelease, input.TagMouseMove}
	if len(*got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(*got))
	}
	for i, rec := range *got {
		if rec.Tag() != want[i] {
			t.Fatalf("record %d tag = %s, want %s", i, rec.Tag(), want[i])
		}
		if rec.Time.Nanos != int64(i+1) {
			t.Fatalf("record %d out of order: %+v", i, rec.Time)
		}
	}
}

func TestRunSkipsMalformedAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reg := input.NewRegistry()
	got := collect(reg)

	runner, err := NewRunner(Options{
		Source:        SliceSource{[]byte(keyA), []byte(broken), []byte("not json"), []byte(releaseA)},
		Registry:      reg,
		Logger:        logger.Wrap(zap.New(core)),
		SkipMalformed: true,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Received != 4 || res.Delivered != 2 || res.Malformed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(*got) != 2 {
		t.Fatalf("expected 2 delivered records, got %d", len(*got))
	}
	if n := logs.FilterMessage("dropping malformed payload").Len(); n != 2 {
		t.Fatalf("expected 2 warnings, got %d", n)
	}
}

func TestRunStopsOnMalformed(t *testing.T) {
	reg := input.NewRegistry()
	got := collect(reg)

	runner, err := NewRunner(Options{
		Source:   SliceSource{[]byte(keyA), []byte(broken), []byte(releaseA)},
		Registry: reg,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := runner.Run(context.Background())
	if !errors.Is(err, input.ErrInvalidTime) {
		t.Fatalf("expected invalid time error, got %v", err)
	}
	if res.Delivered != 1 || len(*got) != 1 {
		t.Fatalf("expected delivery to stop at the malformed payload, got %+v", res)
	}
}

func TestRunCallbackFailure(t *testing.T) {
	boom := errors.New("consumer down")

	reg := input.NewRegistry()
	reg.Register(func(input.Record) error { return boom })
	runner, err := NewRunner(Options{Source: SliceSource{[]byte(keyA), []byte(releaseA)}, Registry: reg})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := runner.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if res.Received != 1 || res.CallbackErrors != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	core, logs := observer.New(zap.ErrorLevel)
	reg = input.NewRegistry()
	reg.Register(func(input.Record) error { return boom })
	runner, err = NewRunner(Options{
		Source:             SliceSource{[]byte(keyA), []byte(releaseA)},
		Registry:           reg,
		Logger:             logger.Wrap(zap.New(core)),
		SkipCallbackErrors: true,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err = runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.CallbackErrors != 2 || logs.Len() != 2 {
		t.Fatalf("expected two logged callback failures, got %+v and %d logs", res, logs.Len())
	}
}

func TestRunCountsDecodeErrorFromCallbackAsCallbackFailure(t *testing.T) {
	reg := input.NewRegistry()
	reg.Register(func(input.Record) error {
		// A consumer that decodes something of its own and fails.
		_, err := input.DecodeString(`{}`)
		return err
	})
	runner, err := NewRunner(Options{
		Source:             SliceSource{[]byte(keyA), []byte(`not json`)},
		Registry:           reg,
		SkipMalformed:      true,
		SkipCallbackErrors: true,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Received != 2 || res.CallbackErrors != 1 || res.Malformed != 1 || res.Delivered != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	reg := input.NewRegistry()
	got := collect(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner, err := NewRunner(Options{Source: SliceSource{[]byte(keyA)}, Registry: reg})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(*got) != 0 {
		t.Fatalf("no record should be delivered after cancellation")
	}
}

func TestSourceFunc(t *testing.T) {
	reg := input.NewRegistry()
	got := collect(reg)

	src := SourceFunc(func(ctx context.Context, emit func([]byte) error) error {
		for _, p := range []string{moveEvent, keyA} {
			if err := emit([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
	runner, err := NewRunner(Options{Source: src, Registry: reg})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(*got) != 2 || (*got)[0].Tag() != input.TagMouseMove {
		t.Fatalf("unexpected records %+v", *got)
	}
}

func TestLineSourceCopiesPayloads(t *testing.T) {
	var payloads [][]byte
	src := NewLineSource(strings.NewReader("first\nsecond\n"))
	err := src.Stream(context.Background(), func(p []byte) error {
		payloads = append(payloads, p)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(payloads) != 2 || string(payloads[0]) != "first" || string(payloads[1]) != "second" {
		t.Fatalf("unexpected payloads %q", payloads)
	}
}
