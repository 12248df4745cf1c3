package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-sender/config"
	"github.com/marcelsud/webhook-sender/internal/app"
	"github.com/marcelsud/webhook-sender/internal/logger"
)

/* migrate applies the PostgreSQL subscription schema.
 * Usage: go run cmd/migrate/main.go -config config.yaml
 * The schema uses IF NOT EXISTS, so running it twice is harmless.
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
	if cfg.Store.Driver != config.StorePostgres {
		return fmt.Errorf("store.driver is %q, nothing to migrate", cfg.Store.Driver)
	}

	log, logCloser, err := logger.New(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	deps := app.New(cfg, log)
	defer deps.Close(ctx)

	if _, err := deps.Postgres(ctx); err != nil {
		return err
	}
	log.Info().Msg("schema applied")
	return nil
}
