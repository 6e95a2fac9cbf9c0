// Package alert escalates critical cases to a human responder through a
// webhook. Dispatch is fire-and-forget with one retry; losing an alert is
// logged loudly but never blocks the reply pipeline.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/careline/internal/types"
)

const (
	dispatchTimeout = 10 * time.Second
	retryDelay      = 2 * time.Second
)

// Webhook posts alerts to a configured HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// New creates a Webhook dispatcher. An empty URL disables dispatch.
func New(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: dispatchTimeout},
	}
}

type alertPayload struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Urgency   string `json:"urgency"`
	At        string `json:"at"`
}

// Dispatch posts the alert in the background. At-least-once within the
// process: a failed post is retried once after a short delay.
func (w *Webhook) Dispatch(recipient, message string, urgency types.Urgency) {
	if w.url == "" {
		slog.Warn("alert webhook not configured, dropping alert", "urgency", urgency.String())
		return
	}

	payload := alertPayload{
		Recipient: recipient,
		Message:   message,
		Urgency:   urgency.String(),
		At:        time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		if err := w.post(payload); err != nil {
			slog.Warn("alert dispatch failed, retrying", "error", err)
			time.Sleep(retryDelay)
			if err := w.post(payload); err != nil {
				slog.Error("alert dispatch lost", "recipient", recipient, "urgency", urgency.String(), "error", err)
			}
		}
	}()
}

func (w *Webhook) post(payload alertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("alert endpoint returned %d", resp.StatusCode)
	}
	return nil
}

var _ types.AlertDispatcher = (*Webhook)(nil)
