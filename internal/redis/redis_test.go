package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"inputfeed/internal/input"
)

// testClient connects to REDIS_TEST_ADDR (host:port) or skips.
func testClient(t *testing.T) Config {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	host, port, ok := strings.Cut(addr, ":")
	if !ok {
		t.Fatalf("REDIS_TEST_ADDR must be host:port, got %q", addr)
	}
	return Config{Host: host, Port: port}
}

func TestConfigAddr(t *testing.T) {
	if got := (Config{Host: "cache", Port: "6380"}).Addr(); got != "cache:6380" {
		t.Fatalf("unexpected addr %q", got)
	}
}

func TestSubscriberRequiresPatterns(t *testing.T) {
	client := NewClient(Config{Host: "127.0.0.1", Port: "1"})
	defer client.Close()
	err := NewSubscriber(client).Stream(context.Background(), func([]byte) error { return nil })
	if err == nil {
		t.Fatalf("expected error without patterns")
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	cfg := testClient(t)
	client := NewClient(cfg)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := NewPinger(client).Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	channel := "input:test:" + time.Now().Format("150405.000000")
	sub := NewSubscriber(client, channel)

	received := make(chan []byte, 1)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = sub.Stream(subCtx, func(p []byte) error {
			received <- p
			return errStop
		})
	}()

	// Give the subscription a moment to register before publishing.
	time.Sleep(200 * time.Millisecond)

	name := "a"
	rec := input.Record{Time: input.Timestamp{Secs: 1}, Name: &name, Event: input.KeyPress{Key: input.NamedKey(input.KeyA)}}
	pub := NewPublisher(client, channel)
	if err := pub.Callback()(rec); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case payload := <-received:
		var shaped struct {
			Event struct {
				Type string `json:"type"`
			} `json:"event"`
		}
		if err := json.Unmarshal(payload, &shaped); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if shaped.Event.Type != "KeyPress" {
			t.Fatalf("unexpected payload %s", payload)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for published record")
	}
}

func TestViewerStore(t *testing.T) {
	cfg := testClient(t)
	client := NewClient(cfg)
	defer client.Close()

	ctx := context.Background()
	if err := NewPinger(client).Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	store := NewViewerStore(client, time.Minute)
	before, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := store.Join(ctx, "viewer-test", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	after, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if after != before+1 {
		t.Fatalf("expected %d viewers, got %d", before+1, after)
	}
	if err := store.Leave(ctx, "viewer-test"); err != nil {
		t.Fatalf("leave: %v", err)
	}
}

var errStop = errors.New("stop")

func TestStreamLimiter(t *testing.T) {
	cfg := testClient(t)
	client := NewClient(cfg)
	defer client.Close()

	ctx := context.Background()
	if err := NewPinger(client).Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	limiter := NewStreamLimiter(client, 2, time.Minute)
	ip := "test-" + time.Now().Format("150405.000000")
	defer limiter.Reset(ctx, ip)

	for i, want := range []bool{true, true, false} {
		res, err := limiter.Allow(ctx, ip)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if res.Allowed != want {
			t.Fatalf("attempt %d: allowed=%v, want %v", i, res.Allowed, want)
		}
	}
}
