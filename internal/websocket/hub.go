package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"inputfeed/internal/input"
)

// AllTypes is the channel that receives every record regardless of tag.
const AllTypes = "*"

type requestKind int

const (
	requestRegister requestKind = iota
	requestUnregister
	requestSubscribe
	requestUnsubscribe
)

// hubRequest is a queued membership change. A single queue keeps a
// client's register, subscribe and unregister requests in order.
type hubRequest struct {
	kind    requestKind
	client  *Client
	channel string
}

// Hub fans delivered records out to websocket viewers. Each viewer
// subscribes to tag channels (or AllTypes).
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps tag channel to set of clients subscribed to it
	channels map[string]map[*Client]struct{}

	requests chan hubRequest
}

// NewHub creates a new websocket hub
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan hubRequest, 512),
	}
}

// Run applies membership changes until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			switch req.kind {
			case requestRegister:
				h.addClient(req.client)
			case requestUnregister:
				h.removeClient(req.client)
			case requestSubscribe:
				h.subscribeToChannel(req.client, req.channel)
			case requestUnsubscribe:
				h.unsubscribeFromChannel(req.client, req.channel)
			}
		}
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.requests <- hubRequest{kind: requestRegister, client: client}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.requests <- hubRequest{kind: requestUnregister, client: client}
}

// Subscribe subscribes a client to a tag channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.requests <- hubRequest{kind: requestSubscribe, client: client, channel: channel}
}

// Unsubscribe unsubscribes a client from a tag channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.requests <- hubRequest{kind: requestUnsubscribe, client: client, channel: channel}
}

// Callback returns an input.Callback that encodes each record once, in the
// consumer shape, and queues it to every interested viewer. Slow viewers
// lose frames rather than stall dispatch.
func (h *Hub) Callback() input.Callback {
	return func(rec input.Record) error {
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		h.Broadcast(string(rec.Tag()), payload)
		return nil
	}
}

// Broadcast sends payload to clients subscribed to tag or to AllTypes.
// A client subscribed to both receives it once.
func (h *Hub) Broadcast(tag string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[AllTypes] {
		c.SendMessage(payload)
	}
	if tag == AllTypes {
		return
	}
	all := h.channels[AllTypes]
	for c := range h.channels[tag] {
		if _, dup := all[c]; dup {
			continue
		}
		c.SendMessage(payload)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelSubscriberCount returns the number of subscribers for a channel
func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, channel := range client.GetChannels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Ignore requests for clients that already left.
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.Subscribe(channel)
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.Unsubscribe(channel)
}
