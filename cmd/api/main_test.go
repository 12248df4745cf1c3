package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/marcelsud/webhook-sender/config"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/sender"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 20 * time.Millisecond
	cfg.Sender.RetryDelays = nil
	cfg.Sender.DrainTimeout = time.Second
	return cfg
}

func testEngine(t *testing.T) *sender.Engine {
	t.Helper()
	engine, err := sender.New(sender.NewHTTPDeliverer(nil, zerolog.Nop()), sender.Options{MaxConcurrency: 1}, zerolog.Nop())
	require.NoError(t, err)
	return engine
}

func TestShutdown(t *testing.T) {
	t.Run("success - server and engine are stopped", func(t *testing.T) {
		engine := testEngine(t)
		srv := &http.Server{Handler: http.NotFoundHandler()}

		ctx, cancel := context.WithCancel(context.Background())
		errShutdown := make(chan error, 1)
		go shutdown(srv, ctx, testConfig(t), engine, zerolog.Nop(), errShutdown)
		cancel()

		require.NoError(t, <-errShutdown)
		assert.ErrorIs(t, engine.Send(context.Background(), nil), sender.ErrClosed)
	})

	t.Run("error - engine is drained even when the server does not stop in time", func(t *testing.T) {
		engine := testEngine(t)

		release := make(chan struct{})
		defer close(release)
		srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		})}
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		go func() { _ = srv.Serve(ln) }()

		// keep one request active so Shutdown hits its deadline
		go func() { _, _ = http.Get("http://" + ln.Addr().String()) }()
		time.Sleep(50 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		errShutdown := make(chan error, 1)
		go shutdown(srv, ctx, testConfig(t), engine, zerolog.Nop(), errShutdown)
		cancel()

		err = <-errShutdown
		require.Error(t, err)
		assert.Contains(t, err.Error(), "forcing closing the server")
		assert.ErrorIs(t, engine.Send(context.Background(), []*webhook.WorkItem{}), sender.ErrClosed)
	})
}
