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

	"github.com/marcelsud/webhook-sender/config"
	"github.com/marcelsud/webhook-sender/internal/app"
	"github.com/marcelsud/webhook-sender/internal/http/chi"
	"github.com/marcelsud/webhook-sender/internal/logger"
	"github.com/marcelsud/webhook-sender/metrics"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/ingest"
	wbredis "github.com/marcelsud/webhook-sender/webhook/redis"
	"github.com/marcelsud/webhook-sender/webhook/sender"
	"github.com/rs/zerolog"
)

/* api serves the subscription and notification endpoints.
 * In direct mode notifications are delivered by an in-process engine; in
 * queue mode they are enqueued for cmd/worker.
 * https://eltonminetto.dev/post/2022-07-06-error-handling-cli-applications-golang/
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

	store, err := deps.Store(ctx)
	if err != nil {
		return err
	}

	var queue *wbredis.Queue
	if cfg.Sender.Mode == config.ModeQueue {
		queue, err = deps.Queue(ctx, "api")
		if err != nil {
			return err
		}
	}

	var (
		exporter *metrics.OTelExporter
		recorder sender.MetricsRecorder
		handler  http.Handler
	)
	if cfg.Metrics.Enabled {
		var collector metrics.Collector
		if queue != nil {
			collector = metrics.NewRedisCollector(queue)
		}
		exporter, err = metrics.NewOTelExporter(collector, nil)
		if err != nil {
			return err
		}
		defer exporter.Shutdown(context.Background())
		recorder = exporter
		handler = exporter.Handler()
	}

	var (
		notifier webhook.Sender
		engine   *sender.Engine
	)
	if queue != nil {
		notifier = ingest.NewQueueSender(queue)
	} else {
		engine, err = sender.New(sender.NewHTTPDeliverer(nil, log), app.EngineOptions(cfg.Sender, recorder), log)
		if err != nil {
			return err
		}
		if exporter != nil {
			exporter.WatchEngine("api", engine)
		}
		notifier = engine
	}

	var verifier webhook.Verifier
	if cfg.Verification.Enabled {
		verifier = webhook.NewEchoVerifier(cfg.Verification.Timeout)
	}

	service := webhook.NewService(store, notifier, verifier)
	srv := &http.Server{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Addr:         cfg.Server.Addr(),
		Handler:      chi.Handlers(ctx, service, handler, log),
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, cfg, engine, log, errShutdown)

	log.Info().Str("addr", srv.Addr).Str("mode", cfg.Sender.Mode).Str("store", cfg.Store.Driver).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errShutdown
}

// shutdown stops the server first so no new notifications arrive, then
// drains the engine. The drain has its own budget covering the retry
// schedule since direct mode has no queue to redeliver abandoned items.
func shutdown(server *http.Server, ctxShutdown context.Context, cfg *config.Config, engine *sender.Engine, log zerolog.Logger, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()

	log.Info().Msg("shutting down server")
	var errs []error
	if err := server.Shutdown(ctxTimeout); err != nil {
		errs = append(errs, fmt.Errorf("forcing closing the server: %w", err))
	}

	if engine != nil {
		budget := cfg.Sender.DrainBudget()
		log.Info().Dur("drain_timeout", budget).Msg("draining sender")

		ctxDrain, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()
		if err := engine.Close(ctxDrain); err != nil {
			errs = append(errs, fmt.Errorf("draining sender: %w", err))
		}
	}
	errShutdown <- errors.Join(errs...)
}
