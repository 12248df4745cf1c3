package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-sender/config"
	"github.com/marcelsud/webhook-sender/subscriptions"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/ingest"
	"github.com/marcelsud/webhook-sender/webhook/memory"
	"github.com/marcelsud/webhook-sender/webhook/postgres"
	wbredis "github.com/marcelsud/webhook-sender/webhook/redis"
	"github.com/marcelsud/webhook-sender/webhook/sender"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

/* Deps wires the shared infrastructure of the commands.
 * Imports flow one way: cmd -> app -> storage and domain packages.
 */
type Deps struct {
	Config *config.Config
	Logger zerolog.Logger

	redis   *goredis.Client
	closers []func(context.Context) error
}

func New(cfg *config.Config, logger zerolog.Logger) *Deps {
	return &Deps{Config: cfg, Logger: logger}
}

// Redis connects on first use and shares the client afterwards
func (d *Deps) Redis() (*goredis.Client, error) {
	if d.redis != nil {
		return d.redis, nil
	}
	client, err := wbredis.NewClient(d.Config.Redis.Addr, d.Config.Redis.Password, d.Config.Redis.DB)
	if err != nil {
		return nil, err
	}
	d.redis = client
	d.onClose(func(context.Context) error { return client.Close() })
	return client, nil
}

// Store opens the configured subscription store and applies the seed file
func (d *Deps) Store(ctx context.Context) (webhook.Store, error) {
	var store webhook.Store

	switch d.Config.Store.Driver {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreRedis:
		client, err := d.Redis()
		if err != nil {
			return nil, err
		}
		// the client is closed with the other Redis users
		store = wbredis.NewStore(client)
	case config.StorePostgres:
		pg, err := d.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		store = pg
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", webhook.ErrInvalidConfiguration, d.Config.Store.Driver)
	}

	if d.Config.Store.SeedFile != "" {
		loader := subscriptions.NewLoader()
		if err := loader.Load(d.Config.Store.SeedFile); err != nil {
			return nil, fmt.Errorf("loading seed file: %w", err)
		}
		if _, err := subscriptions.Apply(ctx, store, loader.List(), d.Logger); err != nil {
			return nil, fmt.Errorf("seeding subscriptions: %w", err)
		}
	}
	return store, nil
}

// Postgres opens the PostgreSQL store and applies its schema
func (d *Deps) Postgres(ctx context.Context) (*postgres.Store, error) {
	sc := d.Config.Store
	store, err := postgres.NewStoreWithPoolConfig(sc.PostgresURL, sc.MaxOpenConns, sc.MaxIdleConns, sc.ConnMaxLifetimeMinutes)
	if err != nil {
		return nil, err
	}
	d.onClose(store.Close)

	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Queue opens the work item stream for the given consumer
func (d *Deps) Queue(ctx context.Context, consumer string) (*wbredis.Queue, error) {
	client, err := d.Redis()
	if err != nil {
		return nil, err
	}
	qc := d.Config.Queue
	if consumer == "" {
		consumer = webhook.NewID()
	}
	return wbredis.NewQueue(ctx, client, qc.Stream, qc.Group, consumer)
}

// Close releases everything in reverse order of acquisition
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func (d *Deps) onClose(fn func(context.Context) error) {
	d.closers = append(d.closers, fn)
}

// EngineOptions maps the sender config; metrics may be nil
func EngineOptions(cfg config.SenderConfig, metrics sender.MetricsRecorder) sender.Options {
	return sender.Options{
		RetryDelays:    append([]time.Duration(nil), cfg.RetryDelays...),
		MaxConcurrency: cfg.MaxConcurrency,
		Metrics:        metrics,
	}
}

// LoopOptions maps the queue config; heartbeat may be nil
func LoopOptions(cfg config.QueueConfig, consumer string, heartbeat ingest.Heartbeat) ingest.Options {
	return ingest.Options{
		PollingInterval:   cfg.PollingInterval,
		VisibilityTimeout: cfg.VisibilityTimeout,
		MaxDequeueCount:   cfg.MaxDequeueCount,
		BatchSize:         cfg.BatchSize,
		DrainTimeout:      cfg.DrainTimeout,
		Heartbeat:         heartbeat,
		Consumer:          consumer,
	}
}
