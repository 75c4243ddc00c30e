// Package capture drives the delivery loop: it pulls serialized payloads from
// a Source, decodes them and dispatches the records through an input.Registry.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

// Source yields one serialized payload per input occurrence, in capture order.
// Stream blocks until the source is exhausted, ctx is done, or emit fails.
type Source interface {
	Stream(ctx context.Context, emit func(payload []byte) error) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, emit func(payload []byte) error) error

// Stream calls the underlying function.
func (f SourceFunc) Stream(ctx context.Context, emit func(payload []byte) error) error {
	return f(ctx, emit)
}

// maxLineSize bounds a single newline-delimited payload.
const maxLineSize = 1 << 20

// LineSource reads newline-delimited payloads, e.g. from a native hook
// helper piping JSON to stdin. Blank lines are skipped.
type LineSource struct {
	r io.Reader
}

// NewLineSource wraps r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{r: r}
}

func (s *LineSource) Stream(ctx context.Context, emit func(payload []byte) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer; hand out a private copy.
		payload := append([]byte(nil), line...)
		if err := emit(payload); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// SliceSource replays fixed payloads; useful for tests and demos.
type SliceSource [][]byte

func (s SliceSource) Stream(ctx context.Context, emit func(payload []byte) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, payload := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(payload); err != nil {
			return err
		}
	}
	return nil
}
