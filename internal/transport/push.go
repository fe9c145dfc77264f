package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	tele "gopkg.in/telebot.v4"

	"github.com/dfursa/qapolls-bot/internal/domain"
)

// secretTokenHeader is the header Telegram echoes the webhook secret in.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dispatcher accepts normalized inbound events for processing.
type Dispatcher interface {
	Dispatch(ev domain.Event)
}

// Webhook is the push source: one externally delivered update per request.
// The caller is acknowledged as soon as the update is accepted; engine
// processing continues after the response is written.
type Webhook struct {
	secret     string
	dispatcher Dispatcher
}

// NewWebhook creates the push handler with the configured shared secret.
func NewWebhook(secret string, d Dispatcher) *Webhook {
	return &Webhook{secret: secret, dispatcher: d}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *Webhook) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.handle)
}

func (h *Webhook) handle(w http.ResponseWriter, r *http.Request) {
	// The secret is checked before the payload is touched.
	if r.Header.Get(secretTokenHeader) != h.secret {
		slog.Warn("Webhook request with invalid secret token", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	var update tele.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("Webhook request with malformed body", "error", err)
		writeError(w, http.StatusBadRequest, "malformed update payload")
		return
	}

	if ev, ok := eventFromUpdate(update); ok {
		h.dispatcher.Dispatch(ev)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
