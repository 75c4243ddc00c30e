package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inputfeed/internal/input"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher republishes delivered records, in the consumer shape, to a
// Redis channel so other processes can follow the stream.
type Publisher struct {
	client  *goredis.Client
	channel string
	timeout time.Duration
}

func NewPublisher(client *goredis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel, timeout: time.Second}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Callback returns an input.Callback publishing each record to the
// publisher's channel. Publishing is synchronous and bounded by a timeout.
func (p *Publisher) Callback() input.Callback {
	return func(rec input.Record) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, p.channel, data); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
		}
		return nil
	}
}
