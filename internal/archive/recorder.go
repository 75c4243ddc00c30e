// Package archive records delivered input events as JSON-lines segments in
// object storage, one segment per flush.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"inputfeed/internal/input"
	"inputfeed/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const contentType = "application/x-ndjson"

// Uploader stores one object.
type Uploader interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type Options struct {
	Prefix     string
	MaxRecords int
	Interval   time.Duration
	MaxRetries int
	Logger     *logger.Logger
}

type segment struct {
	key     string
	body    []byte
	records int
	retries int
}

// Recorder buffers records and uploads them in segments. A segment is cut
// when MaxRecords is reached, every Interval, and when Run stops.
type Recorder struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	count   int
	seq     int
	pending []segment

	uploader   Uploader
	prefix     string
	session    string
	maxRecords int
	interval   time.Duration
	maxRetries int
	flushCh    chan struct{}
	log        *logger.Logger
}

func NewRecorder(uploader Uploader, opts Options) *Recorder {
	if opts.Prefix == "" {
		opts.Prefix = "recordings"
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 1000
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Recorder{
		uploader:   uploader,
		prefix:     opts.Prefix,
		session:    uuid.NewString(),
		maxRecords: opts.MaxRecords,
		interval:   opts.Interval,
		maxRetries: opts.MaxRetries,
		flushCh:    make(chan struct{}, 1),
		log:        opts.Logger.Named("archive"),
	}
}

// Session identifies this recorder's objects under Prefix.
func (r *Recorder) Session() string {
	return r.session
}

// Callback returns an input.Callback that appends each record, in the
// consumer shape, to the current segment. It never blocks on storage.
func (r *Recorder) Callback() input.Callback {
	return func(rec input.Record) error {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.buf.Write(line)
		r.buf.WriteByte('\n')
		r.count++
		full := r.count >= r.maxRecords
		r.mu.Unlock()

		if full {
			select {
			case r.flushCh <- struct{}{}:
			default:
			}
		}
		return nil
	}
}

// Run flushes on a timer or when a segment fills, until ctx is done. The
// last segment is flushed with a short grace period after cancellation.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.Flush(final); err != nil {
				r.log.Errorf("final flush: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			r.flushLogged(ctx)
		case <-r.flushCh:
			r.flushLogged(ctx)
		}
	}
}

func (r *Recorder) flushLogged(ctx context.Context) {
	if err := r.Flush(ctx); err != nil {
		r.log.Warnf("flush: %v", err)
	}
}

// Flush cuts the current buffer into a segment and uploads every pending
// segment in order. Segments that fail stay queued until they exceed
// MaxRetries.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.count > 0 {
		r.seq++
		r.pending = append(r.pending, segment{
			key:     fmt.Sprintf("%s/%s/%06d.jsonl", r.prefix, r.session, r.seq),
			body:    bytes.Clone(r.buf.Bytes()),
			records: r.count,
		})
		r.buf.Reset()
		r.count = 0
	}
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	var firstErr error
	var retry []segment
	for i, seg := range pending {
		if firstErr != nil {
			retry = append(retry, pending[i:]...)
			break
		}
		if err := r.uploader.Put(ctx, seg.key, contentType, seg.body); err != nil {
			seg.retries++
			if seg.retries >= r.maxRetries {
				r.log.Logger.Error("dropping recording segment",
					zap.String("key", seg.key),
					zap.Int("records", seg.records),
					zap.Error(err),
				)
				continue
			}
			firstErr = fmt.Errorf("upload %s: %w", seg.key, err)
			retry = append(retry, seg)
			continue
		}
		r.log.Debugf("uploaded %s (%d records)", seg.key, seg.records)
	}

	if len(retry) > 0 {
		r.mu.Lock()
		r.pending = append(retry, r.pending...)
		r.mu.Unlock()
	}
	return firstErr
}
