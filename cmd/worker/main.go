package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-sender/config"
	"github.com/marcelsud/webhook-sender/internal/app"
	"github.com/marcelsud/webhook-sender/internal/logger"
	"github.com/marcelsud/webhook-sender/metrics"
	"github.com/marcelsud/webhook-sender/webhook/ingest"
	"github.com/marcelsud/webhook-sender/webhook/sender"
)

/* worker runs the queue ingestion loop: it delivers work items enqueued by
 * the api in queue mode and deletes each message once it is done with it.
 * Several workers may share a stream; the consumer group splits the work.
 */

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, logCloser, err := logger.New(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	deps := app.New(cfg, log)
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("closing resources")
		}
	}()

	consumer := cfg.Queue.Consumer
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	queue, err := deps.Queue(ctx, consumer)
	if err != nil {
		return err
	}

	var (
		exporter *metrics.OTelExporter
		recorder sender.MetricsRecorder
	)
	if cfg.Metrics.Enabled {
		exporter, err = metrics.NewOTelExporter(metrics.NewRedisCollector(queue), nil)
		if err != nil {
			return err
		}
		defer exporter.Shutdown(context.Background())
		recorder = exporter
	}

	loop, err := ingest.NewLoop(
		queue,
		sender.NewHTTPDeliverer(nil, log),
		app.EngineOptions(cfg.Sender, recorder),
		app.LoopOptions(cfg.Queue, consumer, queue),
		log,
	)
	if err != nil {
		return err
	}

	if exporter != nil {
		exporter.WatchEngine("worker", loop.Engine())
		srv := statusServer(cfg.Server, loop, exporter.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	log.Info().Str("stream", queue.Stream()).Str("group", queue.Group()).Str("consumer", consumer).Msg("worker started")
	return loop.Run(ctx)
}

// statusServer exposes /health and /metrics for the worker
func statusServer(cfg config.ServerConfig, loop *ingest.Loop, metrics http.Handler) *http.Server {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if loop.State() != ingest.Polling {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":%q}`, loop.State())
	})
	r.Method(http.MethodGet, "/metrics", metrics)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
