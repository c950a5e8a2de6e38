// Package httpapi exposes the inbound webhook and operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

// InboundPublisher enqueues a decoded inbound message for the flow worker.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, userID string, msg gateway.Inbound) error
}

// WebhookHandler receives messaging-channel callbacks and publishes them to
// the dispatch queue. The channel's raw payload is decoded into the typed
// inbound union here; nothing downstream touches raw JSON.
type WebhookHandler struct {
	publisher InboundPublisher
	logger    *logging.Logger
}

// NewWebhookHandler creates the inbound webhook handler.
func NewWebhookHandler(publisher InboundPublisher, logger *logging.Logger) *WebhookHandler {
	if publisher == nil {
		panic("httpapi: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{publisher: publisher, logger: logger}
}

// inboundPayload is the channel-agnostic webhook body. Exactly one of the
// kind-specific sections must be present for its kind.
type inboundPayload struct {
	From string `json:"from"`
	Kind string `json:"kind"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	ListReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"list_reply,omitempty"`
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
}

func (p inboundPayload) toInbound() (gateway.Inbound, bool) {
	switch p.Kind {
	case "text":
		if p.Text == nil {
			return nil, false
		}
		return gateway.Text{Body: p.Text.Body}, true
	case "list_reply":
		if p.ListReply == nil || p.ListReply.ID == "" {
			return nil, false
		}
		return gateway.ListReply{ID: p.ListReply.ID, Title: p.ListReply.Title}, true
	case "button_reply":
		if p.ButtonReply == nil || p.ButtonReply.ID == "" {
			return nil, false
		}
		return gateway.ButtonReply{ID: p.ButtonReply.ID, Title: p.ButtonReply.Title}, true
	default:
		return nil, false
	}
}

// HandleInbound decodes and enqueues one inbound message. Malformed or
// unknown-kind payloads get a 400; queue failures a 502 so the channel
// retries delivery.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(payload.From)
	if userID == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}
	msg, ok := payload.toInbound()
	if !ok {
		h.logger.Warn("unsupported inbound payload", "kind", payload.Kind, "from", userID)
		http.Error(w, "unsupported message kind", http.StatusBadRequest)
		return
	}

	if err := h.publisher.PublishInbound(r.Context(), userID, msg); err != nil {
		h.logger.Error("enqueue inbound message", "error", err, "from", userID)
		http.Error(w, "failed to enqueue message", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"queued"}`))
}

// HealthCheck reports liveness.
func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
