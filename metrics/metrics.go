package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the durable queues.
type Metrics struct {
	// QueueLengths maps stream to the number of messages it holds
	QueueLengths map[string]int64 `json:"queue_lengths"`

	// PendingCounts maps stream to messages handed out and not yet deleted
	PendingCounts map[string]int64 `json:"pending_counts"`

	// Consumers maps stream to its consumers with a live heartbeat
	Consumers map[string][]ConsumerInfo `json:"consumers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// ConsumerInfo represents an ingestion loop reporting heartbeats.
type ConsumerInfo struct {
	Consumer      string    `json:"consumer"`
	Stream        string    `json:"stream"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting queue metrics.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueLengths returns the number of messages per stream
	GetQueueLengths(ctx context.Context) (map[string]int64, error)

	// GetPendingCounts returns the in-flight messages per stream
	GetPendingCounts(ctx context.Context) (map[string]int64, error)

	// GetActiveConsumers returns the live consumers per stream
	GetActiveConsumers(ctx context.Context) (map[string][]ConsumerInfo, error)
}
