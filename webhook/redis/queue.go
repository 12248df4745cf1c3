package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/redis/go-redis/v9"
)

const (
	fieldBody       = "body"
	fieldEnqueuedAt = "enqueued_at"
)

/* Queue implements webhook.Queue on a Redis Stream.
 * Messages handed out stay in the consumer group's pending list until
 * deleted. A pending message idle for longer than the visibility timeout
 * is claimed again by the next Dequeue on any replica, and its delivery
 * counter is the dequeue count.
 */
type Queue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

var (
	_ webhook.Queue              = (*Queue)(nil)
	_ webhook.VisibilityExtender = (*Queue)(nil)
)

// NewQueue creates the consumer group if needed and returns the queue
func NewQueue(ctx context.Context, client *redis.Client, stream, group, consumer string) (*Queue, error) {
	if stream == "" || group == "" || consumer == "" {
		return nil, fmt.Errorf("%w: stream, group and consumer are required", webhook.ErrInvalidConfiguration)
	}

	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return &Queue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}, nil
}

// Stream returns the stream key
func (q *Queue) Stream() string {
	return q.stream
}

// Group returns the consumer group name
func (q *Queue) Group() string {
	return q.group
}

// Enqueue appends a message to the stream
func (q *Queue) Enqueue(ctx context.Context, body []byte) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			fieldBody:       string(body),
			fieldEnqueuedAt: time.Now().UnixMilli(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("adding to stream: %w", err)
	}
	return id, nil
}

// Dequeue first reclaims messages whose visibility timeout elapsed, then
// reads new ones without blocking
func (q *Queue) Dequeue(ctx context.Context, max int, visibility time.Duration) ([]webhook.QueueMessage, error) {
	if max <= 0 {
		return nil, nil
	}

	msgs, err := q.reclaim(ctx, max, visibility)
	if err != nil {
		return nil, err
	}
	if len(msgs) >= max {
		return msgs, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(max - len(msgs)),
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return msgs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			msgs = append(msgs, toMessage(m, 1))
		}
	}
	return msgs, nil
}

func (q *Queue) reclaim(ctx context.Context, max int, visibility time.Duration) ([]webhook.QueueMessage, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  visibility,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming pending messages: %w", err)
	}

	msgs := make([]webhook.QueueMessage, 0, len(claimed))
	for _, m := range claimed {
		if _, ok := m.Values[fieldBody]; !ok {
			// entry trimmed from the stream while pending
			q.client.XAck(ctx, q.stream, q.group, m.ID)
			continue
		}
		count, err := q.deliveryCount(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, toMessage(m, count))
	}
	return msgs, nil
}

func (q *Queue) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("reading pending entry: %w", err)
	}
	if len(pending) == 0 {
		return 1, nil
	}
	return pending[0].RetryCount, nil
}

// Extend resets the idle time of pending messages so XAUTOCLAIM in other
// consumers leaves them alone. JUSTID keeps the delivery counter unchanged.
func (q *Queue) Extend(ctx context.Context, msgs []webhook.QueueMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	err := q.client.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  0,
		Messages: ids,
	}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("extending %d messages: %w", len(ids), err)
	}
	return nil
}

// Delete acknowledges and removes a message
func (q *Queue) Delete(ctx context.Context, msg webhook.QueueMessage) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, q.stream, q.group, msg.ID)
		pipe.XDel(ctx, q.stream, msg.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", msg.ID, err)
	}
	return nil
}

// Len returns the number of messages in the stream
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("reading stream length: %w", err)
	}
	return n, nil
}

// Pending returns the number of messages handed out and not yet deleted
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	p, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		return 0, fmt.Errorf("reading pending summary: %w", err)
	}
	return p.Count, nil
}

func toMessage(m redis.XMessage, dequeueCount int64) webhook.QueueMessage {
	msg := webhook.QueueMessage{
		ID:           m.ID,
		DequeueCount: dequeueCount,
	}
	if body, ok := m.Values[fieldBody].(string); ok {
		msg.Body = []byte(body)
	}
	if ts, ok := m.Values[fieldEnqueuedAt].(string); ok {
		msg.EnqueuedAt = time.UnixMilli(parseInt64(ts))
	}
	return msg
}
