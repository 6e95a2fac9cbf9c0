// Package delivery sends outbound replies over the transport, handling
// segmentation and retries. Multi-segment messages go out as one multipart
// operation; the whole send is retried, never individual segments.
package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/careline/internal/sms"
	"github.com/user/careline/internal/types"
)

// Manager drives outbound sends through the transport with retry.
type Manager struct {
	transport types.Transport
	retry     *RetryPolicy
}

// New creates a Manager with the default retry policy.
func New(transport types.Transport) *Manager {
	return &Manager{
		transport: transport,
		retry:     DefaultRetryPolicy(),
	}
}

// Send truncates the message to the transport ceiling, splits it into
// segments, and sends them as one multipart operation with retries. Only
// the final failure is surfaced.
func (m *Manager) Send(ctx context.Context, recipient, text string) error {
	segments := sms.Split(text)

	err := m.retry.Execute(ctx, func() error {
		return m.transport.Send(ctx, recipient, segments)
	})
	if err != nil {
		return fmt.Errorf("delivering to %s after %d attempts: %w", recipient, m.retry.MaxAttempts, err)
	}

	slog.Debug("delivered reply", "recipient", recipient, "parts", len(segments))
	return nil
}
