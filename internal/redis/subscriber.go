package redis

import (
	"context"
	"errors"
	"fmt"

	apperrors "inputfeed/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// Subscriber receives capture payloads published by a native hook process.
// Each pub/sub message is one serialized event; message order on a channel
// is capture order. It satisfies capture.Source.
type Subscriber struct {
	client   *goredis.Client
	patterns []string
}

func NewSubscriber(client *goredis.Client, patterns ...string) *Subscriber {
	return &Subscriber{client: client, patterns: patterns}
}

// Stream blocks, handing every message payload to emit, until ctx is done
// or emit returns an error.
func (s *Subscriber) Stream(ctx context.Context, emit func(payload []byte) error) error {
	if len(s.patterns) == 0 {
		return errors.New("redis subscriber: no channel patterns")
	}
	sub := s.client.PSubscribe(ctx, s.patterns...)
	defer sub.Close()

	// Wait for the subscription confirmation so no message published after
	// Stream starts is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %v", apperrors.ErrSourceStopped, err)
		}
		if err := emit([]byte(msg.Payload)); err != nil {
			return err
		}
	}
}
