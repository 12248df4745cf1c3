package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/rs/zerolog"
)

// maxDrain bounds how much of a response body is read before closing
const maxDrain = 64 << 10

// Result is the classified outcome of a single delivery attempt
type Result struct {
	Outcome    webhook.Outcome
	StatusCode int
	Err        error
	Duration   time.Duration
}

// Deliverer performs one delivery attempt for an item.
// Implementations must not panic and report every failure through Result.
type Deliverer interface {
	Deliver(ctx context.Context, item *webhook.WorkItem) Result
}

// HTTPDeliverer posts signed requests with a shared client
type HTTPDeliverer struct {
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPDeliverer creates a deliverer. A nil client gets a dedicated
// client without a timeout; cancellation comes from the context.
func NewHTTPDeliverer(client *http.Client, logger zerolog.Logger) *HTTPDeliverer {
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	return &HTTPDeliverer{
		client: client,
		logger: logger.With().Str("component", "deliverer").Logger(),
	}
}

// Deliver sends one POST and classifies the response:
// 2xx is Success, 410 is Gone, anything else is a retry candidate.
func (d *HTTPDeliverer) Deliver(ctx context.Context, item *webhook.WorkItem) Result {
	start := time.Now()
	res := d.attempt(ctx, item)
	res.Duration = time.Since(start)

	d.log(item, res)
	return res
}

func (d *HTTPDeliverer) attempt(ctx context.Context, item *webhook.WorkItem) Result {
	req, err := NewRequest(ctx, item, d.logger)
	if err != nil {
		return Result{Outcome: webhook.RetryScheduled, Err: err}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{Outcome: webhook.RetryScheduled, Err: fmt.Errorf("posting webhook: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return Result{Outcome: Classify(resp.StatusCode), StatusCode: resp.StatusCode}
}

// Classify maps an HTTP status code to the outcome of an attempt
func Classify(status int) webhook.Outcome {
	switch {
	case status >= 200 && status <= 299:
		return webhook.Success
	case status == http.StatusGone:
		return webhook.Gone
	default:
		return webhook.RetryScheduled
	}
}

// CloseIdleConnections releases pooled connections of the shared client
func (d *HTTPDeliverer) CloseIdleConnections() {
	d.client.CloseIdleConnections()
}

func (d *HTTPDeliverer) log(item *webhook.WorkItem, res Result) {
	var event *zerolog.Event
	switch res.Outcome {
	case webhook.Success, webhook.Gone:
		event = d.logger.Info()
	default:
		event = d.logger.Warn().Err(res.Err)
	}
	event.
		Str("item_id", item.ID).
		Str("subscription_id", item.SubscriptionID()).
		Str("outcome", res.Outcome.String()).
		Int("offset", item.Offset).
		Int("status_code", res.StatusCode).
		Dur("duration", res.Duration).
		Msg("webhook delivery attempt")
}
