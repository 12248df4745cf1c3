package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/sender"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// StatsSource is anything exposing engine stats, usually a *sender.Engine
type StatsSource interface {
	Stats() sender.Stats
}

// OTelExporter provides OpenTelemetry metrics export in Prometheus format.
// It observes the queue collector and the watched engines, and records the
// delivery pipeline as a sender.MetricsRecorder.
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	gatherer      promclient.Gatherer

	mu      sync.RWMutex
	engines map[string]StatsSource

	// OTel meters and instruments
	meter              metric.Meter
	queueLengthGauge   metric.Int64ObservableGauge
	pendingGauge       metric.Int64ObservableGauge
	consumersGauge     metric.Int64ObservableGauge
	stageDepthGauge    metric.Int64ObservableGauge
	stageInFlightGauge metric.Int64ObservableGauge
	attempts           metric.Int64Counter
	attemptDuration    metric.Float64Histogram
	terminal           metric.Int64Counter
	attemptsPerItem    metric.Int64Histogram
	abandoned          metric.Int64Counter
}

var _ sender.MetricsRecorder = (*OTelExporter)(nil)

// NewOTelExporter creates the exporter. A nil registry uses the Prometheus
// default registry and installs the meter provider globally. A nil collector
// disables the queue gauges.
func NewOTelExporter(collector Collector, registry *promclient.Registry) (*OTelExporter, error) {
	var (
		exporterOpts []prometheus.Option
		gatherer     promclient.Gatherer = promclient.DefaultGatherer
	)
	if registry != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(registry))
		gatherer = registry
	}

	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	if registry == nil {
		otel.SetMeterProvider(meterProvider)
	}

	meter := meterProvider.Meter(
		"webhook-sender",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		gatherer:      gatherer,
		engines:       make(map[string]StatsSource),
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// WatchEngine adds an engine whose stage pools are reported under name
func (oe *OTelExporter) WatchEngine(name string, src StatsSource) {
	oe.mu.Lock()
	defer oe.mu.Unlock()
	oe.engines[name] = src
}

func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.queueLengthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.length",
		metric.WithDescription("Number of messages held by the durable queue"),
		metric.WithUnit("{messages}"),
		metric.WithInt64Callback(oe.observeQueueLengths),
	)
	if err != nil {
		return fmt.Errorf("creating queue length gauge: %w", err)
	}

	oe.pendingGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.pending",
		metric.WithDescription("Number of messages handed out and not yet deleted"),
		metric.WithUnit("{messages}"),
		metric.WithInt64Callback(oe.observePending),
	)
	if err != nil {
		return fmt.Errorf("creating pending gauge: %w", err)
	}

	oe.consumersGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.consumers.active",
		metric.WithDescription("Number of ingestion consumers with a live heartbeat"),
		metric.WithUnit("{consumers}"),
		metric.WithInt64Callback(oe.observeConsumers),
	)
	if err != nil {
		return fmt.Errorf("creating active consumers gauge: %w", err)
	}

	oe.stageDepthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.stage.queue_depth",
		metric.WithDescription("Work items waiting in a retry stage"),
		metric.WithUnit("{items}"),
		metric.WithInt64Callback(oe.observeStageDepth),
	)
	if err != nil {
		return fmt.Errorf("creating stage depth gauge: %w", err)
	}

	oe.stageInFlightGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.stage.in_flight",
		metric.WithDescription("Work items being delivered by a retry stage"),
		metric.WithUnit("{items}"),
		metric.WithInt64Callback(oe.observeStageInFlight),
	)
	if err != nil {
		return fmt.Errorf("creating stage in-flight gauge: %w", err)
	}

	oe.attempts, err = oe.meter.Int64Counter(
		"webhook.delivery.attempts",
		metric.WithDescription("Delivery attempts by stage and outcome"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return fmt.Errorf("creating attempts counter: %w", err)
	}

	oe.attemptDuration, err = oe.meter.Float64Histogram(
		"webhook.delivery.duration",
		metric.WithDescription("Duration of a single delivery attempt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating attempt duration histogram: %w", err)
	}

	oe.terminal, err = oe.meter.Int64Counter(
		"webhook.delivery.terminal",
		metric.WithDescription("Work items that reached a terminal outcome"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return fmt.Errorf("creating terminal counter: %w", err)
	}

	oe.attemptsPerItem, err = oe.meter.Int64Histogram(
		"webhook.delivery.attempts_per_item",
		metric.WithDescription("Attempts made before a work item reached its terminal outcome"),
		metric.WithUnit("{attempts}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10),
	)
	if err != nil {
		return fmt.Errorf("creating attempts per item histogram: %w", err)
	}

	oe.abandoned, err = oe.meter.Int64Counter(
		"webhook.delivery.abandoned",
		metric.WithDescription("Work items dropped by a forced shutdown"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return fmt.Errorf("creating abandoned counter: %w", err)
	}

	return nil
}

// RecordAttempt counts one delivery attempt
func (oe *OTelExporter) RecordAttempt(ctx context.Context, stage int, outcome webhook.Outcome, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", strconv.Itoa(stage)),
		attribute.String("outcome", outcome.String()),
	)
	oe.attempts.Add(ctx, 1, attrs)
	oe.attemptDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTerminal counts a work item reaching its terminal outcome
func (oe *OTelExporter) RecordTerminal(ctx context.Context, outcome webhook.Outcome, attempts int) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome.String()))
	oe.terminal.Add(ctx, 1, attrs)
	oe.attemptsPerItem.Record(ctx, int64(attempts), attrs)
}

// RecordAbandoned counts a work item dropped at shutdown
func (oe *OTelExporter) RecordAbandoned(ctx context.Context) {
	oe.abandoned.Add(ctx, 1)
}

func (oe *OTelExporter) observeQueueLengths(ctx context.Context, observer metric.Int64Observer) error {
	if oe.collector == nil {
		return nil
	}
	lengths, err := oe.collector.GetQueueLengths(ctx)
	if err != nil {
		return err
	}

	for stream, length := range lengths {
		observer.Observe(length, metric.WithAttributes(
			attribute.String("queue.stream", stream),
		))
	}
	return nil
}

func (oe *OTelExporter) observePending(ctx context.Context, observer metric.Int64Observer) error {
	if oe.collector == nil {
		return nil
	}
	pending, err := oe.collector.GetPendingCounts(ctx)
	if err != nil {
		return err
	}

	for stream, n := range pending {
		observer.Observe(n, metric.WithAttributes(
			attribute.String("queue.stream", stream),
		))
	}
	return nil
}

func (oe *OTelExporter) observeConsumers(ctx context.Context, observer metric.Int64Observer) error {
	if oe.collector == nil {
		return nil
	}
	consumers, err := oe.collector.GetActiveConsumers(ctx)
	if err != nil {
		return err
	}

	for stream, list := range consumers {
		observer.Observe(int64(len(list)), metric.WithAttributes(
			attribute.String("queue.stream", stream),
		))
	}
	return nil
}

func (oe *OTelExporter) observeStageDepth(ctx context.Context, observer metric.Int64Observer) error {
	oe.observeStages(func(engine string, s sender.StageStats) {
		observer.Observe(int64(s.QueueDepth), stageAttributes(engine, s))
	})
	return nil
}

func (oe *OTelExporter) observeStageInFlight(ctx context.Context, observer metric.Int64Observer) error {
	oe.observeStages(func(engine string, s sender.StageStats) {
		observer.Observe(int64(s.InFlight), stageAttributes(engine, s))
	})
	return nil
}

func (oe *OTelExporter) observeStages(observe func(engine string, s sender.StageStats)) {
	oe.mu.RLock()
	defer oe.mu.RUnlock()

	for name, src := range oe.engines {
		for _, s := range src.Stats().Stages {
			observe(name, s)
		}
	}
}

func stageAttributes(engine string, s sender.StageStats) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("stage", strconv.Itoa(s.Index)),
	)
}

// Handler serves the Prometheus-formatted metrics
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.HandlerFor(oe.gatherer, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
