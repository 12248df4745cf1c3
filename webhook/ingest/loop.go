package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/sender"
	"github.com/rs/zerolog"
)

// MessageProperty is the work item property holding the source queue message
const MessageProperty = "ingest.message"

const (
	defaultBatchSize    = 32
	defaultDrainTimeout = 30 * time.Second
)

// State of the ingestion loop
type State int32

const (
	Polling State = iota + 1
	Draining
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Heartbeat publishes the liveness of a consumer
type Heartbeat interface {
	Heartbeat(ctx context.Context, consumer, status string) error
}

// Options configures the loop
type Options struct {
	PollingInterval   time.Duration
	VisibilityTimeout time.Duration
	// MaxDequeueCount is the redelivery budget of a message, independent of
	// the retry stages
	MaxDequeueCount int64
	BatchSize       int
	DrainTimeout    time.Duration
	Heartbeat       Heartbeat
	Consumer        string
}

func (o Options) validate() error {
	if o.PollingInterval <= 0 {
		return fmt.Errorf("%w: polling interval must be positive", webhook.ErrInvalidConfiguration)
	}
	if o.VisibilityTimeout <= 0 {
		return fmt.Errorf("%w: visibility timeout must be positive", webhook.ErrInvalidConfiguration)
	}
	if o.MaxDequeueCount <= 0 {
		return fmt.Errorf("%w: max dequeue count must be positive", webhook.ErrInvalidConfiguration)
	}
	return nil
}

/* Loop feeds work items from a durable queue into its own engine.
 * A message is deleted when its item succeeds, is gone, or is exhausted
 * after the queue has handed it out MaxDequeueCount times. Any other
 * failure leaves it to reappear after the visibility timeout.
 * While an item is in the engine its message is tracked as in flight:
 * redeliveries of it are not submitted again, and a queue implementing
 * webhook.VisibilityExtender keeps it hidden from other consumers.
 */
type Loop struct {
	queue    webhook.Queue
	extender webhook.VisibilityExtender
	engine   *sender.Engine
	hooks    sender.Hooks
	opts     Options
	logger   zerolog.Logger
	state    atomic.Int32

	mu       sync.Mutex
	inflight map[string]webhook.QueueMessage
}

// NewLoop creates a loop and the engine it submits to. The hooks in
// engineOpts run before the message is acknowledged.
func NewLoop(queue webhook.Queue, deliverer sender.Deliverer, engineOpts sender.Options, opts Options, logger zerolog.Logger) (*Loop, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: queue is required", webhook.ErrInvalidConfiguration)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.Consumer == "" {
		opts.Consumer = webhook.NewID()
	}

	extender, _ := queue.(webhook.VisibilityExtender)
	if extender == nil {
		var schedule time.Duration
		for _, d := range engineOpts.RetryDelays {
			schedule += d
		}
		if opts.VisibilityTimeout <= schedule {
			return nil, fmt.Errorf("%w: visibility timeout %s must exceed the retry schedule %s",
				webhook.ErrInvalidConfiguration, opts.VisibilityTimeout, schedule)
		}
	}

	l := &Loop{
		queue:    queue,
		extender: extender,
		hooks:    engineOpts.Hooks,
		opts:     opts,
		logger:   logger.With().Str("component", "ingest").Str("consumer", opts.Consumer).Logger(),
		inflight: make(map[string]webhook.QueueMessage),
	}

	engineOpts.Hooks = sender.Hooks{
		OnSuccess: l.onSuccess,
		OnGone:    l.onGone,
		OnFailure: l.onFailure,
	}
	callerLast := engineOpts.LastAttempt
	engineOpts.LastAttempt = func(item *webhook.WorkItem) bool {
		if l.overLimit(item) {
			return true
		}
		return callerLast != nil && callerLast(item)
	}
	engine, err := sender.New(deliverer, engineOpts, logger)
	if err != nil {
		return nil, fmt.Errorf("creating sender: %w", err)
	}
	l.engine = engine
	l.state.Store(int32(Polling))

	return l, nil
}

// State returns the current state
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Engine exposes the engine for stats
func (l *Loop) Engine() *sender.Engine {
	return l.engine
}

// Run polls until ctx is cancelled, then drains the engine. It returns the
// drain error, if any.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Dur("polling_interval", l.opts.PollingInterval).
		Dur("visibility_timeout", l.opts.VisibilityTimeout).
		Int64("max_dequeue_count", l.opts.MaxDequeueCount).
		Msg("ingestion loop started")

	extendCtx, stopExtending := context.WithCancel(context.Background())
	extended := make(chan struct{})
	go func() {
		defer close(extended)
		l.extendInFlight(extendCtx)
	}()
	defer func() {
		stopExtending()
		<-extended
	}()

	for ctx.Err() == nil {
		n, err := l.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.logger.Error().Err(err).Msg("fetching messages")
			l.sleep(ctx)
			continue
		}
		if n == 0 {
			l.heartbeat(ctx, "idle")
			l.sleep(ctx)
		}
	}

	l.state.Store(int32(Draining))
	l.logger.Info().Msg("ingestion loop draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), l.opts.DrainTimeout)
	defer cancel()
	err := l.engine.Close(drainCtx)

	l.state.Store(int32(Stopped))
	l.heartbeat(drainCtx, "stopped")
	l.logger.Info().Msg("ingestion loop stopped")

	if err != nil {
		return fmt.Errorf("draining sender: %w", err)
	}
	return nil
}

// poll fetches one batch and submits it; it returns how many messages were
// handled, not counting redeliveries of in-flight ones
func (l *Loop) poll(ctx context.Context) (int, error) {
	msgs, err := l.queue.Dequeue(ctx, l.opts.BatchSize, l.opts.VisibilityTimeout)
	if err != nil {
		return 0, fmt.Errorf("dequeuing: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	l.heartbeat(ctx, "processing")

	handled := 0
	items := make([]*webhook.WorkItem, 0, len(msgs))
	for _, msg := range msgs {
		if l.isInFlight(msg.ID) {
			l.logger.Debug().
				Str("message_id", msg.ID).
				Int64("dequeue_count", msg.DequeueCount).
				Msg("message still in flight, skipping redelivery")
			continue
		}
		handled++
		item, err := Decode(msg.Body)
		if err != nil {
			l.logger.Error().
				Err(err).
				Str("message_id", msg.ID).
				Int64("dequeue_count", msg.DequeueCount).
				Msg("discarding undecodable message")
			l.delete(ctx, msg)
			continue
		}
		item.SetProperty(MessageProperty, msg)
		l.track(msg)
		items = append(items, item)
	}

	if err := l.engine.Send(ctx, items); err != nil {
		l.logger.Error().Err(err).Int("items", len(items)).Msg("submitting work items")
		for _, item := range items {
			l.release(item)
		}
	}
	return handled, nil
}

func (l *Loop) track(msg webhook.QueueMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight[msg.ID] = msg
}

func (l *Loop) isInFlight(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inflight[id]
	return ok
}

func (l *Loop) release(item *webhook.WorkItem) {
	msg, ok := messageOf(item)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, msg.ID)
}

func (l *Loop) inFlight() []webhook.QueueMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]webhook.QueueMessage, 0, len(l.inflight))
	for _, msg := range l.inflight {
		msgs = append(msgs, msg)
	}
	return msgs
}

// extendInFlight pushes back the visibility of in-flight messages three
// times per visibility timeout until ctx is cancelled
func (l *Loop) extendInFlight(ctx context.Context) {
	if l.extender == nil {
		return
	}
	ticker := time.NewTicker(l.opts.VisibilityTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		msgs := l.inFlight()
		if len(msgs) == 0 {
			continue
		}
		if err := l.extender.Extend(ctx, msgs); err != nil && ctx.Err() == nil {
			l.logger.Error().Err(err).Int("messages", len(msgs)).Msg("extending visibility")
		}
	}
}

// overLimit reports items whose message reached the max dequeue count; they
// get no further retry stages
func (l *Loop) overLimit(item *webhook.WorkItem) bool {
	msg, ok := messageOf(item)
	return ok && msg.DequeueCount >= l.opts.MaxDequeueCount
}

func (l *Loop) onSuccess(ctx context.Context, item *webhook.WorkItem, res sender.Result) {
	defer l.release(item)
	l.callHook(l.hooks.OnSuccess, ctx, item, res)
	l.ack(ctx, item)
}

func (l *Loop) onGone(ctx context.Context, item *webhook.WorkItem, res sender.Result) {
	defer l.release(item)
	l.callHook(l.hooks.OnGone, ctx, item, res)
	l.ack(ctx, item)
}

func (l *Loop) onFailure(ctx context.Context, item *webhook.WorkItem, res sender.Result) {
	defer l.release(item)
	l.callHook(l.hooks.OnFailure, ctx, item, res)

	msg, ok := messageOf(item)
	if !ok {
		return
	}
	if l.overLimit(item) {
		l.logger.Error().
			Str("message_id", msg.ID).
			Str("item_id", item.ID).
			Int64("dequeue_count", msg.DequeueCount).
			Msg("message exceeded max dequeue count, giving up")
		l.delete(ctx, msg)
		return
	}
	l.logger.Debug().
		Str("message_id", msg.ID).
		Str("item_id", item.ID).
		Int64("dequeue_count", msg.DequeueCount).
		Msg("leaving message for redelivery")
}

// callHook runs a caller hook; a panic there must not skip the ack
func (l *Loop) callHook(hook sender.Hook, ctx context.Context, item *webhook.WorkItem, res sender.Result) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Str("item_id", item.ID).Msg("ingest hook panicked")
		}
	}()
	hook(ctx, item, res)
}

func (l *Loop) ack(ctx context.Context, item *webhook.WorkItem) {
	if msg, ok := messageOf(item); ok {
		l.delete(ctx, msg)
	}
}

func (l *Loop) delete(ctx context.Context, msg webhook.QueueMessage) {
	if err := l.queue.Delete(ctx, msg); err != nil {
		l.logger.Error().Err(err).Str("message_id", msg.ID).Msg("deleting message")
	}
}

func (l *Loop) heartbeat(ctx context.Context, status string) {
	if l.opts.Heartbeat == nil {
		return
	}
	if err := l.opts.Heartbeat.Heartbeat(ctx, l.opts.Consumer, status); err != nil {
		l.logger.Warn().Err(err).Str("status", status).Msg("sending heartbeat")
	}
}

func (l *Loop) sleep(ctx context.Context) {
	timer := time.NewTimer(l.opts.PollingInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func messageOf(item *webhook.WorkItem) (webhook.QueueMessage, bool) {
	v, ok := item.Property(MessageProperty)
	if !ok {
		return webhook.QueueMessage{}, false
	}
	msg, ok := v.(webhook.QueueMessage)
	return msg, ok
}

// Encode serializes a work item for the queue. Properties are not included.
func Encode(item *webhook.WorkItem) ([]byte, error) {
	item.EnsureID()
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshaling work item: %w", err)
	}
	return data, nil
}

// Decode parses a queued work item
func Decode(data []byte) (*webhook.WorkItem, error) {
	var item webhook.WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling work item: %w", err)
	}
	if item.Subscription == nil {
		return nil, fmt.Errorf("work item %q has no subscription", item.ID)
	}
	if item.Offset < 0 {
		return nil, fmt.Errorf("work item %q has negative offset", item.ID)
	}
	return &item, nil
}
