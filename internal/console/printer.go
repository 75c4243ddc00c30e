// Package console prints delivered input records for a human watching a
// terminal, as text lines or JSON lines.
package console

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"inputfeed/internal/input"
)

// Format selects how records are printed.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatOff  Format = "off"
)

// ParseFormat accepts "text", "json" and "off"; empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatOff:
		return Format(s), nil
	}
	return FormatText, fmt.Errorf("unknown console format %q", s)
}

type Options struct {
	Format Format
	// Types restricts output to these tags. Empty prints everything.
	Types []string
	// MoveInterval drops MouseMove records arriving sooner than this after
	// the last printed one. Zero prints every move.
	MoveInterval time.Duration
}

// Printer writes one line per accepted record. Safe for concurrent use.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	format   Format
	types    map[input.Tag]bool
	interval time.Duration
	lastMove time.Time
	now      func() time.Time
	started  time.Time
	count    int
	counts   map[input.Tag]int
	keys     map[string]int
	buttons  map[string]int
}

func NewPrinter(out io.Writer, opts Options) *Printer {
	p := &Printer{
		out:      out,
		format:   opts.Format,
		interval: opts.MoveInterval,
		now:      time.Now,
		counts:   make(map[input.Tag]int),
		keys:     make(map[string]int),
		buttons:  make(map[string]int),
	}
	p.started = p.now()
	if p.format == "" {
		p.format = FormatText
	}
	if len(opts.Types) > 0 {
		p.types = make(map[input.Tag]bool, len(opts.Types))
		for _, t := range opts.Types {
			p.types[input.Tag(t)] = true
		}
	}
	return p
}

// Callback returns the printer as a registry callback.
func (p *Printer) Callback() input.Callback {
	return p.Print
}

// Print writes rec if it passes the type filter and move throttle.
func (p *Printer) Print(rec input.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tag := rec.Tag()
	if p.types != nil && !p.types[tag] {
		return nil
	}
	if tag == input.TagMouseMove && p.interval > 0 {
		now := p.now()
		if !p.lastMove.IsZero() && now.Sub(p.lastMove) < p.interval {
			return nil
		}
		p.lastMove = now
	}
	p.count++
	p.counts[tag]++
	switch e := rec.Event.(type) {
	case input.KeyPress:
		p.keys[e.Key.String()]++
	case input.KeyRelease:
		p.keys[e.Key.String()]++
	case input.ButtonPress:
		p.buttons[e.Button.String()]++
	case input.ButtonRelease:
		p.buttons[e.Button.String()]++
	}

	switch p.format {
	case FormatOff:
		return nil
	case FormatJSON:
		line, err := json.Marshal(jsonLine{Seq: p.count, Record: rec})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.out, "%s\n", line)
		return err
	default:
		_, err := fmt.Fprintf(p.out, "[%s] #%d %s\n",
			rec.Time.Time().UTC().Format("15:04:05"), p.count, describe(rec))
		return err
	}
}

// Counts returns how many records of each tag were accepted.
func (p *Printer) Counts() map[input.Tag]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[input.Tag]int, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// topKeys is how many of the most pressed keys a stats report lists.
const topKeys = 5

// WriteStats prints a summary of accepted records: run time, totals per tag,
// the most used keys and per-button counts. JSON output is left untouched so
// it stays one record per line.
func (p *Printer) WriteStats() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == FormatJSON {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- stats after %s: %d events\n", p.now().Sub(p.started).Truncate(time.Second), p.count)
	for _, tag := range sortedTags(p.counts) {
		fmt.Fprintf(&b, "   %s: %d\n", tag, p.counts[tag])
	}
	if keys := ranked(p.keys); len(keys) > 0 {
		if len(keys) > topKeys {
			keys = keys[:topKeys]
		}
		fmt.Fprintf(&b, "   keys: %s\n", joinCounts(keys))
	}
	if buttons := ranked(p.buttons); len(buttons) > 0 {
		fmt.Fprintf(&b, "   buttons: %s\n", joinCounts(buttons))
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

// RunStats calls WriteStats every interval until ctx is done.
func (p *Printer) RunStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.WriteStats()
		}
	}
}

type nameCount struct {
	name  string
	count int
}

// ranked orders counts by count descending, then by name.
func ranked(counts map[string]int) []nameCount {
	out := make([]nameCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, nameCount{name: name, count: n})
	}
	slices.SortFunc(out, func(a, b nameCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return out
}

func joinCounts(counts []nameCount) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s=%d", c.name, c.count)
	}
	return strings.Join(parts, ", ")
}

// sortedTags lists typed tags in declaration order, then passthrough tags by name.
func sortedTags(counts map[input.Tag]int) []input.Tag {
	var out, extra []input.Tag
	for _, tag := range input.KnownTags {
		if counts[tag] > 0 {
			out = append(out, tag)
		}
	}
	for tag := range counts {
		if !tag.Known() {
			extra = append(extra, tag)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

type jsonLine struct {
	Seq    int          `json:"seq"`
	Record input.Record `json:"event"`
}

func describe(rec input.Record) string {
	switch e := rec.Event.(type) {
	case input.KeyPress:
		if text, ok := rec.Text(); ok {
			return fmt.Sprintf("KeyPress %s (%q)", e.Key, text)
		}
		return "KeyPress " + e.Key.String()
	case input.KeyRelease:
		return "KeyRelease " + e.Key.String()
	case input.ButtonPress:
		return "ButtonPress " + e.Button.String()
	case input.ButtonRelease:
		return "ButtonRelease " + e.Button.String()
	case input.MouseMove:
		return fmt.Sprintf("MouseMove (%d, %d)", e.X, e.Y)
	case input.Wheel:
		return fmt.Sprintf("Wheel dx=%d dy=%d", e.DeltaX, e.DeltaY)
	case input.Unrecognized:
		return "unrecognized event " + e.Name
	}
	return "empty record"
}
