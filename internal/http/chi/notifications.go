package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-sender/webhook"
)

type notificationsRequest struct {
	Notifications []webhook.Notification `json:"notifications"`
}

type notificationsResponse struct {
	Notified int `json:"notified"`
}

// postNotifications handles POST /v1/owners/{owner}/notifications
func postNotifications(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req notificationsRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		n, err := service.Notify(r.Context(), chi.URLParam(r, "owner"), req.Notifications, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, notificationsResponse{Notified: n})
	})
}

// postNotificationsAll handles POST /v1/notifications
func postNotificationsAll(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req notificationsRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		n, err := service.NotifyAll(r.Context(), req.Notifications, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, notificationsResponse{Notified: n})
	})
}
