package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/swandust/clinic-concierge/pkg/logging"
)

// HTTPMessenger posts outbound messages to the WhatsApp gateway sidecar.
type HTTPMessenger struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPMessenger builds a messenger for the gateway's send endpoint.
func NewHTTPMessenger(baseURL, apiKey string, logger *logging.Logger) *HTTPMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPMessenger{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ Messenger = (*HTTPMessenger)(nil)

type sendPayload struct {
	To      string   `json:"to"`
	Kind    string   `json:"kind"`
	Body    string   `json:"body"`
	Choices []Choice `json:"choices,omitempty"`
}

// SendText delivers a plain text message.
func (m *HTTPMessenger) SendText(ctx context.Context, userID, body string) error {
	return m.send(ctx, sendPayload{To: userID, Kind: "text", Body: body})
}

// SendList delivers a single-choice list prompt.
func (m *HTTPMessenger) SendList(ctx context.Context, userID, body string, choices []Choice) error {
	return m.send(ctx, sendPayload{To: userID, Kind: "list", Body: body, Choices: choices})
}

// SendButtons delivers a button prompt.
func (m *HTTPMessenger) SendButtons(ctx context.Context, userID, body string, choices []Choice) error {
	return m.send(ctx, sendPayload{To: userID, Kind: "buttons", Body: body, Choices: choices})
}

func (m *HTTPMessenger) send(ctx context.Context, payload sendPayload) error {
	if m.baseURL == "" {
		return errors.New("gateway: base URL missing")
	}
	if payload.To == "" {
		return errors.New("gateway: recipient required")
	}
	if strings.TrimSpace(payload.Body) == "" {
		return errors.New("gateway: body required")
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("gateway: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: send request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.logger.Error("gateway send rejected",
			"status", resp.StatusCode,
			"to", payload.To,
			"kind", payload.Kind,
		)
		return fmt.Errorf("gateway: send rejected with status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
