package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeartbeatTTL is how long a consumer counts as active after its last beat
const HeartbeatTTL = 60 * time.Second

// ConsumerHeartbeat represents the heartbeat data for an ingestion consumer
type ConsumerHeartbeat struct {
	Consumer      string    `json:"consumer"`
	Stream        string    `json:"stream"`
	Status        string    `json:"status"` // "idle", "processing", "stopped"
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

func heartbeatKey(stream, consumer string) string {
	return fmt.Sprintf("%s:heartbeat:%s:%s", keyPrefix, stream, consumer)
}

// Heartbeat stores a consumer's status with a TTL; a consumer that stops
// beating drops out of ActiveConsumers
func (q *Queue) Heartbeat(ctx context.Context, consumer, status string) error {
	data, err := json.Marshal(ConsumerHeartbeat{
		Consumer:      consumer,
		Stream:        q.stream,
		Status:        status,
		LastHeartbeat: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := q.client.Set(ctx, heartbeatKey(q.stream, consumer), data, HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}
	return nil
}

// ActiveConsumers returns the consumers of this stream with a live heartbeat
func (q *Queue) ActiveConsumers(ctx context.Context) ([]ConsumerHeartbeat, error) {
	pattern := heartbeatKey(q.stream, "*")
	var consumers []ConsumerHeartbeat

	var cursor uint64
	for {
		keys, next, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning heartbeat keys: %w", err)
		}

		for _, key := range keys {
			data, err := q.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				// expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting heartbeat: %w", err)
			}

			var hb ConsumerHeartbeat
			if err := json.Unmarshal([]byte(data), &hb); err != nil {
				continue
			}
			consumers = append(consumers, hb)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return consumers, nil
}
