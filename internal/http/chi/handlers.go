package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/rs/zerolog"
)

const requestTimeout = 60 * time.Second

// Handlers sets up the subscription and notification API. A nil metrics
// handler leaves /metrics unmounted.
func Handlers(ctx context.Context, service webhook.UseCase, metrics http.Handler, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger.With().Str("component", "http").Logger()))
	r.Use(middleware.Recoverer)
	// registration waits on the echo probe, so leave room for its timeout
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Get("/webhooks", listWebhooks(service).ServeHTTP)
			r.Post("/webhooks", postWebhook(service).ServeHTTP)
			r.Delete("/webhooks", deleteWebhooks(service).ServeHTTP)
			r.Get("/webhooks/{id}", getWebhook(service).ServeHTTP)
			r.Put("/webhooks/{id}", putWebhook(service).ServeHTTP)
			r.Delete("/webhooks/{id}", deleteWebhook(service).ServeHTTP)

			r.Post("/notifications", postNotifications(service).ServeHTTP)
		})

		r.Post("/notifications", postNotificationsAll(service).ServeHTTP)
	})

	return r
}
