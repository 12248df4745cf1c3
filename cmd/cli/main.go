package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-sender/config"
	"github.com/marcelsud/webhook-sender/internal/app"
	"github.com/marcelsud/webhook-sender/internal/logger"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/ingest"
	"github.com/marcelsud/webhook-sender/webhook/sender"
)

/* cli fires one notification from the command line.
 * Usage:
 *   go run cmd/cli/main.go -owner acme -action order.created -data '{"id":7}'
 *   go run cmd/cli/main.go -all -action maintenance.scheduled
 * In direct mode it waits until every delivery reached a terminal outcome.
 */

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	owner := flag.String("owner", "", "owner whose subscriptions are notified")
	all := flag.Bool("all", false, "notify the subscriptions of every owner")
	action := flag.String("action", "", "event name")
	data := flag.String("data", "", "notification data as a JSON object")
	flag.Parse()

	if err := run(*configPath, *owner, *all, *action, *data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, owner string, all bool, action, data string) error {
	if owner == "" && !all {
		return fmt.Errorf("either -owner or -all is required")
	}

	var fields map[string]any
	if data != "" {
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return fmt.Errorf("parsing -data: %w", err)
		}
	}
	notification := webhook.NewNotification(action, fields)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, logCloser, err := logger.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	deps := app.New(cfg, log)
	defer deps.Close(ctx)

	store, err := deps.Store(ctx)
	if err != nil {
		return err
	}

	var (
		notifier webhook.Sender
		engine   *sender.Engine
	)
	if cfg.Sender.Mode == config.ModeQueue {
		queue, err := deps.Queue(ctx, "cli")
		if err != nil {
			return err
		}
		notifier = ingest.NewQueueSender(queue)
	} else {
		engine, err = sender.New(sender.NewHTTPDeliverer(nil, log), app.EngineOptions(cfg.Sender, nil), log)
		if err != nil {
			return err
		}
		notifier = engine
	}

	service := webhook.NewService(store, notifier, nil)
	batch := []webhook.Notification{notification}

	var n int
	if all {
		n, err = service.NotifyAll(ctx, batch, nil)
	} else {
		n, err = service.Notify(ctx, owner, batch, nil)
	}
	if err != nil {
		return err
	}

	if engine != nil {
		// Close drains every retry stage before returning
		if err := engine.Close(ctx); err != nil {
			return err
		}
		stats := engine.Stats()
		fmt.Printf("notified %d subscription(s): %d succeeded, %d gone, %d exhausted\n",
			n, stats.Succeeded, stats.Gone, stats.Exhausted)
		return nil
	}

	fmt.Printf("enqueued %d work item(s)\n", n)
	return nil
}
