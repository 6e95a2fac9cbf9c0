package gateway

import (
	"context"
	"time"

	"github.com/user/careline/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single execution of an inbound message through the
// pipeline. Runs for the same sender execute in order.
type Run struct {
	ID         types.RunID
	Sender     string
	Text       string
	Status     RunStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Error      error
	Ctx        context.Context
}

// NewRun creates a Run in the Queued state for the given inbound message.
func NewRun(sender, text string) *Run {
	return &Run{
		ID:        types.NewRunID(),
		Sender:    sender,
		Text:      text,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
