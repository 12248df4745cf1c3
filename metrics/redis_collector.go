package metrics

import (
	"context"
	"fmt"
	"time"

	wbredis "github.com/marcelsud/webhook-sender/webhook/redis"
)

// Stream is the part of a Redis queue the collector reads
type Stream interface {
	Stream() string
	Len(ctx context.Context) (int64, error)
	Pending(ctx context.Context) (int64, error)
	ActiveConsumers(ctx context.Context) ([]wbredis.ConsumerHeartbeat, error)
}

var _ Stream = (*wbredis.Queue)(nil)

// RedisCollector implements the Collector interface for Redis Streams queues
type RedisCollector struct {
	streams []Stream
}

// NewRedisCollector creates a collector over the given queues
func NewRedisCollector(streams ...Stream) *RedisCollector {
	return &RedisCollector{streams: streams}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	lengths, err := c.GetQueueLengths(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue lengths: %w", err)
	}

	pending, err := c.GetPendingCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting pending counts: %w", err)
	}

	consumers, err := c.GetActiveConsumers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active consumers: %w", err)
	}

	return Metrics{
		QueueLengths:  lengths,
		PendingCounts: pending,
		Consumers:     consumers,
		Timestamp:     time.Now(),
	}, nil
}

// GetQueueLengths returns XLEN of each stream
func (c *RedisCollector) GetQueueLengths(ctx context.Context) (map[string]int64, error) {
	lengths := make(map[string]int64, len(c.streams))
	for _, s := range c.streams {
		n, err := s.Len(ctx)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", s.Stream(), err)
		}
		lengths[s.Stream()] = n
	}
	return lengths, nil
}

// GetPendingCounts returns the consumer group pending count of each stream
func (c *RedisCollector) GetPendingCounts(ctx context.Context) (map[string]int64, error) {
	pending := make(map[string]int64, len(c.streams))
	for _, s := range c.streams {
		n, err := s.Pending(ctx)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", s.Stream(), err)
		}
		pending[s.Stream()] = n
	}
	return pending, nil
}

// GetActiveConsumers returns the consumers with a live heartbeat per stream
func (c *RedisCollector) GetActiveConsumers(ctx context.Context) (map[string][]ConsumerInfo, error) {
	consumers := make(map[string][]ConsumerInfo, len(c.streams))
	for _, s := range c.streams {
		beats, err := s.ActiveConsumers(ctx)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", s.Stream(), err)
		}

		infos := make([]ConsumerInfo, 0, len(beats))
		for _, hb := range beats {
			infos = append(infos, ConsumerInfo{
				Consumer:      hb.Consumer,
				Stream:        hb.Stream,
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
			})
		}
		consumers[s.Stream()] = infos
	}
	return consumers, nil
}
