package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/sender"
)

/* HTTP layer DTOs for the subscription API
 * Separate from domain entities to avoid leaking internal structure
 */

const maxBodySize = 1 << 20

// webhookRequest is the body of POST and PUT
type webhookRequest struct {
	ID          string            `json:"Id"`
	URI         string            `json:"WebHookUri"`
	Secret      string            `json:"Secret"`
	Description string            `json:"Description"`
	IsPaused    bool              `json:"IsPaused"`
	Filters     []string          `json:"Filters"`
	Headers     map[string]string `json:"Headers"`
	Properties  map[string]any    `json:"Properties"`
}

func (req webhookRequest) toSubscription() webhook.Subscription {
	return webhook.Subscription{
		ID:          req.ID,
		URI:         req.URI,
		Secret:      req.Secret,
		Description: req.Description,
		IsPaused:    req.IsPaused,
		Filters:     req.Filters,
		Headers:     req.Headers,
		Properties:  req.Properties,
	}
}

// webhookResponse never carries the secret back out
type webhookResponse struct {
	ID          string            `json:"Id"`
	URI         string            `json:"WebHookUri"`
	Description string            `json:"Description,omitempty"`
	IsPaused    bool              `json:"IsPaused"`
	Filters     []string          `json:"Filters"`
	Headers     map[string]string `json:"Headers,omitempty"`
	Properties  map[string]any    `json:"Properties,omitempty"`
}

func newWebhookResponse(sub webhook.Subscription) webhookResponse {
	return webhookResponse{
		ID:          sub.ID,
		URI:         sub.URI,
		Description: sub.Description,
		IsPaused:    sub.IsPaused,
		Filters:     sub.Filters,
		Headers:     sub.Headers,
		Properties:  sub.Properties,
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// listWebhooks handles GET /v1/owners/{owner}/webhooks
func listWebhooks(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subs, err := service.List(r.Context(), chi.URLParam(r, "owner"))
		if err != nil {
			writeError(w, err)
			return
		}

		responses := make([]webhookResponse, 0, len(subs))
		for _, sub := range subs {
			responses = append(responses, newWebhookResponse(sub))
		}
		writeJSON(w, http.StatusOK, responses)
	})
}

// getWebhook handles GET /v1/owners/{owner}/webhooks/{id}
func getWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := service.Get(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newWebhookResponse(sub))
	})
}

// postWebhook handles POST /v1/owners/{owner}/webhooks
func postWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		sub, err := service.Register(r.Context(), chi.URLParam(r, "owner"), req.toSubscription())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newWebhookResponse(sub))
	})
}

// putWebhook handles PUT /v1/owners/{owner}/webhooks/{id}
func putWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		id := chi.URLParam(r, "id")
		if req.ID != "" && req.ID != id {
			writeError(w, fmt.Errorf("%w: body id %q does not match path id %q", webhook.ErrInvalidSubscription, req.ID, id))
			return
		}
		req.ID = id

		sub, err := service.Update(r.Context(), chi.URLParam(r, "owner"), req.toSubscription())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newWebhookResponse(sub))
	})
}

// deleteWebhook handles DELETE /v1/owners/{owner}/webhooks/{id}
func deleteWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.Delete(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// deleteWebhooks handles DELETE /v1/owners/{owner}/webhooks
func deleteWebhooks(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.DeleteAll(r.Context(), chi.URLParam(r, "owner")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// errBadRequest marks malformed request bodies
var errBadRequest = errors.New("malformed request body")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes
func writeError(w http.ResponseWriter, err error) {
	var verr *webhook.VerificationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Reason: verr.Reason})
	case errors.Is(err, errBadRequest),
		errors.Is(err, webhook.ErrInvalidSubscription),
		errors.Is(err, webhook.ErrInvalidNotification):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, webhook.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, webhook.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, sender.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
