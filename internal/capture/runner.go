package capture

import (
	"context"
	"errors"
	"fmt"

	"inputfeed/internal/input"
	"inputfeed/pkg/logger"

	"go.uber.org/zap"
)

// Options controls a Runner.
type Options struct {
	Source   Source
	Registry *input.Registry
	Logger   *logger.Logger
	// SkipMalformed logs and drops payloads that fail to decode instead of
	// stopping the run.
	SkipMalformed bool
	// SkipCallbackErrors logs dispatch failures instead of stopping the run.
	SkipCallbackErrors bool
}

// Runner pulls payloads from a Source and delivers them through a Registry,
// one at a time, on the goroutine that calls Run.
type Runner struct {
	source             Source
	registry           *input.Registry
	log                *logger.Logger
	skipMalformed      bool
	skipCallbackErrors bool
}

// Result summarises a finished run.
type Result struct {
	Received       int
	Delivered      int
	Malformed      int
	CallbackErrors int
}

// NewRunner validates options and constructs a runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Source == nil {
		return nil, errors.New("capture source is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("dispatch registry is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		source:             opts.Source,
		registry:           opts.Registry,
		log:                log.Named("capture"),
		skipMalformed:      opts.SkipMalformed,
		skipCallbackErrors: opts.SkipCallbackErrors,
	}, nil
}

// Run streams until the source ends or ctx is cancelled. Cancellation is
// reported as ctx.Err(); a clean end of the source returns nil.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var res Result
	streamErr := r.source.Stream(ctx, func(payload []byte) error {
		res.Received++

		err := input.Deliver(r.registry, payload)
		if err == nil {
			res.Delivered++
			return nil
		}

		if isDecodeFailure(err) {
			res.Malformed++
			if r.skipMalformed {
				r.log.Logger.Warn("dropping malformed payload",
					zap.Error(err),
					zap.Int("bytes", len(payload)),
				)
				return nil
			}
			return err
		}

		res.CallbackErrors++
		if r.skipCallbackErrors {
			r.log.Logger.Error("callback failed",
				zap.String("tag", failedTag(err)),
				zap.Error(err),
			)
			return nil
		}
		return err
	})

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded) {
			return res, streamErr
		}
		return res, fmt.Errorf("stream input events: %w", streamErr)
	}
	r.log.Logger.Info("capture source finished",
		zap.Int("received", res.Received),
		zap.Int("delivered", res.Delivered),
		zap.Int("malformed", res.Malformed),
	)
	return res, nil
}

// isDecodeFailure tells a rejected payload apart from a callback that failed
// with an error of its own. Dispatch failures always carry a CallbackError.
func isDecodeFailure(err error) bool {
	var decodeErr *input.DecodeError
	var cbErr *input.CallbackError
	return errors.As(err, &decodeErr) && !errors.As(err, &cbErr)
}

func failedTag(err error) string {
	var cbErr *input.CallbackError
	if errors.As(err, &cbErr) {
		return string(cbErr.Tag)
	}
	return ""
}
