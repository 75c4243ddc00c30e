package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis keys for stream viewer tracking
const (
	viewerKeyPrefix = "input:stream:viewer:" // per-viewer marker with TTL
	viewerSet       = "input:stream:viewers" // set of connected viewer IDs
)

// ViewerStore tracks websocket stream viewers across relay instances.
type ViewerStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewViewerStore(client *goredis.Client, ttl time.Duration) *ViewerStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ViewerStore{client: client, ttl: ttl}
}

// Join records a connected viewer.
func (v *ViewerStore) Join(ctx context.Context, viewerID, subject string) error {
	pipe := v.client.Pipeline()
	pipe.Set(ctx, viewerKeyPrefix+viewerID, subject, v.ttl)
	pipe.SAdd(ctx, viewerSet, viewerID)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave removes a viewer.
func (v *ViewerStore) Leave(ctx context.Context, viewerID string) error {
	pipe := v.client.Pipeline()
	pipe.Del(ctx, viewerKeyPrefix+viewerID)
	pipe.SRem(ctx, viewerSet, viewerID)
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat refreshes a viewer's TTL.
func (v *ViewerStore) Heartbeat(ctx context.Context, viewerID string) error {
	return v.client.Expire(ctx, viewerKeyPrefix+viewerID, v.ttl).Err()
}

// Count returns the number of viewers whose marker has not expired, pruning
// stale set members left behind by crashed instances.
func (v *ViewerStore) Count(ctx context.Context) (int, error) {
	ids, err := v.client.SMembers(ctx, viewerSet).Result()
	if err != nil {
		return 0, err
	}
	live := 0
	for _, id := range ids {
		n, err := v.client.Exists(ctx, viewerKeyPrefix+id).Result()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			v.client.SRem(ctx, viewerSet, id)
			continue
		}
		live++
	}
	return live, nil
}
