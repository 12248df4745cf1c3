package webhook

import (
	"context"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// Predicate is an external filter applied to each candidate subscription
// together with the owner it belongs to
type Predicate func(sub Subscription, owner string) bool

// Reader provides read operations for subscriptions
type Reader interface {
	GetAll(ctx context.Context, owner string) ([]Subscription, error)
	Lookup(ctx context.Context, owner, id string) (Subscription, error)
	/* Query returns the non-paused subscriptions of one owner whose filters
	 * match at least one of the actions and that the predicate accepts.
	 * A nil predicate accepts everything.
	 */
	Query(ctx context.Context, owner string, actions []string, predicate Predicate) ([]Subscription, error)
	// QueryAll is Query across every owner, grouped by owner
	QueryAll(ctx context.Context, actions []string, predicate Predicate) (map[string][]Subscription, error)
}

// Writer provides write operations for subscriptions
type Writer interface {
	Insert(ctx context.Context, owner string, sub Subscription) (StoreResult, error)
	Update(ctx context.Context, owner string, sub Subscription) (StoreResult, error)
	Delete(ctx context.Context, owner, id string) (StoreResult, error)
	DeleteAll(ctx context.Context, owner string) error
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Store interface {
	Reader
	Writer
	Close(ctx context.Context) error
}

// QueueMessage is one message fetched from a durable queue
type QueueMessage struct {
	ID   string
	Body []byte
	/* DequeueCount is the queue's own redelivery counter
	 * It is independent of the work item offset
	 */
	DequeueCount int64
	EnqueuedAt   time.Time
}

// Queue is a durable queue of serialized work items
type Queue interface {
	Enqueue(ctx context.Context, body []byte) (string, error)
	/* Dequeue fetches up to max messages and hides them from other consumers
	 * for the visibility timeout. Unacknowledged messages become visible
	 * again once the timeout elapses.
	 */
	Dequeue(ctx context.Context, max int, visibility time.Duration) ([]QueueMessage, error)
	Delete(ctx context.Context, msg QueueMessage) error
}

// VisibilityExtender is implemented by queues that can keep messages hidden
// while they are still being processed
type VisibilityExtender interface {
	Extend(ctx context.Context, msgs []QueueMessage) error
}

// Sender hands work items to a delivery pipeline
type Sender interface {
	Send(ctx context.Context, items []*WorkItem) error
}

// Verifier confirms a subscription endpoint is reachable and cooperative
type Verifier interface {
	Verify(ctx context.Context, sub Subscription) error
}

// FilterSubscriptions applies the Query contract to an in-memory slice.
// Stores without server-side filtering share it.
func FilterSubscriptions(subs []Subscription, owner string, actions []string, predicate Predicate) []Subscription {
	var matched []Subscription
	for _, s := range subs {
		if s.IsPaused || !s.MatchesAny(actions) {
			continue
		}
		if predicate != nil && !predicate(s, owner) {
			continue
		}
		matched = append(matched, s)
	}
	return matched
}
