package ingest

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-sender/webhook"
)

// QueueSender persists work items instead of delivering them; a Loop
// elsewhere picks them up
type QueueSender struct {
	queue webhook.Queue
}

var _ webhook.Sender = (*QueueSender)(nil)

// NewQueueSender creates a sender backed by the queue
func NewQueueSender(queue webhook.Queue) *QueueSender {
	return &QueueSender{queue: queue}
}

// Send enqueues each item, stopping at the first failure
func (s *QueueSender) Send(ctx context.Context, items []*webhook.WorkItem) error {
	for _, item := range items {
		body, err := Encode(item)
		if err != nil {
			return err
		}
		if _, err := s.queue.Enqueue(ctx, body); err != nil {
			return fmt.Errorf("enqueuing work item %s: %w", item.ID, err)
		}
	}
	return nil
}
