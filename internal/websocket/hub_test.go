package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inputfeed/internal/input"
)

func newTestClient(id string) *Client {
	return &Client{
		ID:       id,
		Send:     make(chan []byte, 4),
		channels: make(map[string]bool),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastByTag(t *testing.T) {
	hub := startHub(t)
	keys := newTestClient("keys")
	all := newTestClient("all")
	both := newTestClient("both")

	hub.Register(keys)
	hub.Subscribe(keys, string(input.TagKeyPress))
	hub.Register(all)
	hub.Subscribe(all, AllTypes)
	hub.Register(both)
	hub.Subscribe(both, AllTypes)
	hub.Subscribe(both, string(input.TagKeyPress))
	waitFor(t, func() bool { return hub.GetChannelSubscriberCount(string(input.TagKeyPress)) == 2 })

	hub.Broadcast(string(input.TagKeyPress), []byte("k"))
	hub.Broadcast(string(input.TagWheel), []byte("w"))

	if len(keys.Send) != 1 || string(<-keys.Send) != "k" {
		t.Fatalf("key subscriber should receive only the KeyPress frame")
	}
	if len(all.Send) != 2 {
		t.Fatalf("wildcard subscriber expected 2 frames, got %d", len(all.Send))
	}
	if len(both.Send) != 2 {
		t.Fatalf("overlapping subscriptions must not duplicate frames, got %d", len(both.Send))
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := newTestClient("c")
	hub.Register(c)
	hub.Subscribe(c, AllTypes)
	hub.Unregister(c)
	// Queued after unregister: must not resurrect the client.
	hub.Subscribe(c, AllTypes)

	waitFor(t, func() bool { return hub.GetClientCount() == 0 })
	waitFor(t, func() bool {
		select {
		case _, ok := <-c.Send:
			return !ok
		default:
			return false
		}
	})
	// Let the trailing subscribe drain.
	time.Sleep(20 * time.Millisecond)
	if n := hub.GetChannelSubscriberCount(AllTypes); n != 0 {
		t.Fatalf("expected no wildcard subscribers, got %d", n)
	}
}

func TestHubCallbackEncodesConsumerShape(t *testing.T) {
	hub := startHub(t)
	c := newTestClient("c")
	hub.Register(c)
	hub.Subscribe(c, string(input.TagMouseMove))
	waitFor(t, func() bool { return hub.GetChannelSubscriberCount(string(input.TagMouseMove)) == 1 })

	rec := input.Record{
		Time:  input.Timestamp{Secs: 10, Nanos: 5},
		Event: input.MouseMove{Point: input.Point{X: 3, Y: 4}},
	}
	if err := hub.Callback()(rec); err != nil {
		t.Fatalf("callback: %v", err)
	}

	var got struct {
		Name  *string `json:"name"`
		Event struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"event"`
	}
	if err := json.Unmarshal(<-c.Send, &got); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.Name != nil || got.Event.Type != "MouseMove" || string(got.Event.Value) != `{"x":3,"y":4}` {
		t.Fatalf("unexpected frame %+v value=%s", got, got.Event.Value)
	}
}

func TestSendMessageDropsWhenFull(t *testing.T) {
	c := &Client{Send: make(chan []byte, 1), channels: map[string]bool{}}
	c.SendMessage([]byte("a"))
	c.SendMessage([]byte("b"))
	if c.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", c.Dropped())
	}
}
