package sender

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Send once Close has been called
var ErrClosed = errors.New("sender is closed")

// Hook is called once per work item when it reaches a terminal outcome
type Hook func(ctx context.Context, item *webhook.WorkItem, res Result)

// Hooks are the optional terminal callbacks
type Hooks struct {
	OnSuccess Hook
	OnGone    Hook
	OnFailure Hook
}

// MetricsRecorder is an optional interface for recording pipeline metrics
type MetricsRecorder interface {
	RecordAttempt(ctx context.Context, stage int, outcome webhook.Outcome, duration time.Duration)
	RecordTerminal(ctx context.Context, outcome webhook.Outcome, attempts int)
	RecordAbandoned(ctx context.Context)
}

// Options configures the retry schedule and the pools
type Options struct {
	// RetryDelays holds one delay per retry stage; empty means no retries
	RetryDelays []time.Duration
	// MaxConcurrency is the worker count of every stage, default 8 * NumCPU
	MaxConcurrency int
	Hooks          Hooks
	Metrics        MetricsRecorder
	// LastAttempt, when set, reports items that must not be retried after
	// their current attempt
	LastAttempt func(item *webhook.WorkItem) bool
}

// StageStats is a snapshot of one stage pool
type StageStats struct {
	Index      int
	Delay      time.Duration
	QueueDepth int
	InFlight   int
}

// Stats is a snapshot of the engine counters
type Stats struct {
	Stages    []StageStats
	Submitted int64
	Succeeded int64
	Gone      int64
	Exhausted int64
	Retried   int64
	Abandoned int64
}

/* Engine runs work items through an ordered list of stages.
 * Stage 0 delivers immediately, stage k waits RetryDelays[k-1] first.
 * A retry candidate at stage k moves to stage k+1, or becomes
 * ExhaustedFailure when k is the last stage.
 */
type Engine struct {
	deliverer Deliverer
	stages    []*stage
	hooks     Hooks
	metrics   MetricsRecorder
	last      func(*webhook.WorkItem) bool
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	intake  sync.RWMutex
	closed  bool
	stopped chan struct{}

	submitted atomic.Int64
	succeeded atomic.Int64
	gone      atomic.Int64
	exhausted atomic.Int64
	retried   atomic.Int64
	abandoned atomic.Int64
}

var _ webhook.Sender = (*Engine)(nil)

// New creates and starts an engine
func New(deliverer Deliverer, opts Options, logger zerolog.Logger) (*Engine, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("%w: deliverer is required", webhook.ErrInvalidConfiguration)
	}
	for i, d := range opts.RetryDelays {
		if d < 0 {
			return nil, fmt.Errorf("%w: retry delay %d is negative (%s)", webhook.ErrInvalidConfiguration, i, d)
		}
	}

	workers := opts.MaxConcurrency
	if workers <= 0 {
		workers = 8 * runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		deliverer: deliverer,
		hooks:     opts.Hooks,
		metrics:   opts.Metrics,
		last:      opts.LastAttempt,
		logger:    logger.With().Str("component", "sender").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}

	e.stages = make([]*stage, 0, len(opts.RetryDelays)+1)
	e.stages = append(e.stages, newStage(0, 0, workers))
	for i, d := range opts.RetryDelays {
		e.stages = append(e.stages, newStage(i+1, d, workers))
	}
	for _, s := range e.stages {
		s.start(e.process)
	}

	e.logger.Info().
		Int("stages", len(e.stages)).
		Int("workers_per_stage", workers).
		Msg("sender started")

	return e, nil
}

// Send submits items without blocking. Each item enters the stage matching
// its offset; an offset past the last stage is exhausted immediately.
func (e *Engine) Send(ctx context.Context, items []*webhook.WorkItem) error {
	for i, item := range items {
		if item == nil || item.Subscription == nil {
			return fmt.Errorf("work item %d has no subscription", i)
		}
		if item.Offset < 0 {
			return fmt.Errorf("work item %d has negative offset %d", i, item.Offset)
		}
	}

	e.intake.RLock()
	defer e.intake.RUnlock()
	if e.closed {
		return ErrClosed
	}

	for _, item := range items {
		item.EnsureID()
		e.submitted.Add(1)
		if item.Offset >= len(e.stages) {
			e.terminate(item, Result{Outcome: webhook.ExhaustedFailure})
			continue
		}
		if !e.stages[item.Offset].push(item) {
			e.abandon(item)
		}
	}
	return nil
}

/* Close stops intake and drains the stages in order, so retries scheduled
 * by stage k still land in a running stage k+1. Outstanding HTTP calls are
 * cancelled afterwards. If ctx ends first the remaining items are abandoned
 * without hooks and ctx.Err() is returned. Calling Close again waits for the
 * first call to finish.
 */
func (e *Engine) Close(ctx context.Context) error {
	e.intake.Lock()
	already := e.closed
	e.closed = true
	e.intake.Unlock()

	if already {
		select {
		case <-e.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer close(e.stopped)

	e.logger.Info().Int64("submitted", e.submitted.Load()).Msg("sender shutting down")

	drained := make(chan struct{})
	go func() {
		for _, s := range e.stages {
			s.close()
			s.wait()
		}
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		e.logger.Warn().Msg("sender shutdown timed out, abandoning remaining work items")
		e.cancel()
		for _, s := range e.stages {
			s.close()
		}
		<-drained
	}

	e.cancel()
	if c, ok := e.deliverer.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}

	e.logger.Info().
		Int64("succeeded", e.succeeded.Load()).
		Int64("gone", e.gone.Load()).
		Int64("exhausted", e.exhausted.Load()).
		Int64("abandoned", e.abandoned.Load()).
		Msg("sender shutdown complete")

	return err
}

// Stats returns current engine statistics
func (e *Engine) Stats() Stats {
	stats := Stats{
		Stages:    make([]StageStats, 0, len(e.stages)),
		Submitted: e.submitted.Load(),
		Succeeded: e.succeeded.Load(),
		Gone:      e.gone.Load(),
		Exhausted: e.exhausted.Load(),
		Retried:   e.retried.Load(),
		Abandoned: e.abandoned.Load(),
	}
	for _, s := range e.stages {
		stats.Stages = append(stats.Stages, s.stats())
	}
	return stats
}

// process runs one attempt for a task taken from stage s
func (e *Engine) process(s *stage, t task) {
	item := t.item

	if wait := time.Until(t.readyAt); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-e.ctx.Done():
			timer.Stop()
			e.abandon(item)
			return
		}
	}
	if e.ctx.Err() != nil {
		e.abandon(item)
		return
	}

	res := e.deliverer.Deliver(e.ctx, item)
	if e.metrics != nil {
		e.metrics.RecordAttempt(e.ctx, s.index, res.Outcome, res.Duration)
	}

	switch res.Outcome {
	case webhook.Success, webhook.Gone:
		e.terminate(item, res)
		return
	}

	if e.ctx.Err() != nil {
		e.abandon(item)
		return
	}

	next := item.Offset + 1
	if next >= len(e.stages) || (e.last != nil && e.last(item)) {
		res.Outcome = webhook.ExhaustedFailure
		e.terminate(item, res)
		return
	}

	item.Offset = next
	e.retried.Add(1)
	if !e.stages[next].push(item) {
		e.abandon(item)
	}
}

func (e *Engine) terminate(item *webhook.WorkItem, res Result) {
	var hook Hook
	switch res.Outcome {
	case webhook.Success:
		e.succeeded.Add(1)
		hook = e.hooks.OnSuccess
	case webhook.Gone:
		e.gone.Add(1)
		hook = e.hooks.OnGone
		e.logger.Info().
			Str("item_id", item.ID).
			Str("subscription_id", item.SubscriptionID()).
			Msg("webhook endpoint is gone, stopping delivery")
	default:
		e.exhausted.Add(1)
		hook = e.hooks.OnFailure
		e.logger.Error().
			Err(res.Err).
			Str("item_id", item.ID).
			Str("subscription_id", item.SubscriptionID()).
			Int("offset", item.Offset).
			Int("attempts", item.Offset+1).
			Int("status_code", res.StatusCode).
			Msg("webhook delivery exhausted retries")
	}

	if e.metrics != nil {
		e.metrics.RecordTerminal(e.ctx, res.Outcome, item.Offset+1)
	}
	e.runHook(hook, item, res)
}

func (e *Engine) runHook(hook Hook, item *webhook.WorkItem, res Result) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("item_id", item.ID).
				Str("outcome", res.Outcome.String()).
				Msg("sender hook panicked")
		}
	}()
	hook(e.ctx, item, res)
}

func (e *Engine) abandon(item *webhook.WorkItem) {
	e.abandoned.Add(1)
	if e.metrics != nil {
		e.metrics.RecordAbandoned(context.Background())
	}
	e.logger.Warn().
		Str("item_id", item.ID).
		Str("subscription_id", item.SubscriptionID()).
		Int("offset", item.Offset).
		Msg("abandoning work item on shutdown")
}
