// Package gateway orchestrates inbound messages into replies: rate
// limiting, per-sender serialized ingestion, inference routing, the
// confidence gate, and delivery, with every state transition audited.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/careline/internal/conversation"
	"github.com/user/careline/internal/ratelimit"
	"github.com/user/careline/internal/triage"
	"github.com/user/careline/internal/types"
)

// DefaultAutoSendThreshold is the confidence gate below which replies are
// held for review instead of auto-sent.
const DefaultAutoSendThreshold = 0.7

const (
	rateLimitedReply  = "You have reached the message limit. Please try again later."
	resetConfirmation = "Conversation reset. You can start a new query."
	processingFailed  = "Sorry, something went wrong processing your message."
)

// Store is the persistence surface the gateway operates on.
type Store interface {
	types.ThreadStore
	types.MessageStore
	types.ContextStore
	types.AuditStore
}

// Replier produces a reply for a prompt context. It never fails: degraded
// paths return stub results instead of errors.
type Replier interface {
	Route(ctx context.Context, pc *types.PromptContext) *types.InferenceResult
}

// Deliverer sends a reply text over the transport.
type Deliverer interface {
	Send(ctx context.Context, recipient, text string) error
}

// Gateway wires the inbound pipeline together.
type Gateway struct {
	store     Store
	limiter   *ratelimit.Limiter
	estimator *conversation.Estimator
	replier   Replier
	deliverer Deliverer
	threshold float64
	Queue     *Queue

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway. threshold is the auto-send confidence gate;
// maxConcurrent limits simultaneous reply generation across senders.
func New(store Store, limiter *ratelimit.Limiter, estimator *conversation.Estimator, replier Replier, deliverer Deliverer, threshold float64, maxConcurrent int64) *Gateway {
	if threshold <= 0 {
		threshold = DefaultAutoSendThreshold
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	g := &Gateway{
		store:     store,
		limiter:   limiter,
		estimator: estimator,
		replier:   replier,
		deliverer: deliverer,
		threshold: threshold,
		Queue:     NewQueue(maxConcurrent),
		now:       time.Now,
	}
	g.Queue.SetProcessor(g.processRun)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and drains the queue.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// HandleInbound accepts one inbound message. Over-limit senders get a
// fixed auto-reply and the message is dropped; everything else is
// recorded against the sender's quota and enqueued on their lane.
func (g *Gateway) HandleInbound(ctx context.Context, sender, text string) error {
	if !g.limiter.IsAllowed(sender) {
		usage := g.limiter.Usage(sender)
		slog.Warn("sender over rate limit", "sender", sender,
			"hourly_remaining", usage.HourlyRemaining(),
			"daily_remaining", usage.DailyRemaining())
		if err := g.store.Log(ctx, types.AuditRateLimited, sender, "", map[string]any{
			"usage": usage,
		}); err != nil {
			return fmt.Errorf("audit rate limit: %w", err)
		}
		if err := g.deliverer.Send(ctx, sender, rateLimitedReply); err != nil {
			slog.Error("rate limit auto-reply failed", "sender", sender, "error", err)
		}
		return nil
	}

	g.limiter.Record(sender)
	return g.Queue.Enqueue(NewRun(sender, text))
}

// IngestResult is the outcome of running one inbound message through the
// ingestion pipeline.
type IngestResult struct {
	Thread   *types.Thread
	WasReset bool
	Urgency  types.Urgency
}

// Ingest runs the ingestion pipeline for one inbound message: resolve or
// create the sender's thread (an expired thread is archived and replaced,
// never silently continued), handle the reset command, classify and
// escalate urgency, then persist the message, thread counters, and audit
// entry in a single transaction. A reset message is a pure control
// command: it touches no counters and writes no incoming message row.
func (g *Gateway) Ingest(ctx context.Context, sender, text string) (*IngestResult, error) {
	isReset := conversation.IsResetCommand(text)
	now := g.now().UTC()

	thread, err := g.store.ThreadBySender(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("resolving thread: %w", err)
	}
	if thread != nil && now.After(thread.ExpiresAt) {
		if err := g.store.UpdateThreadStatus(ctx, thread.ID, types.ThreadArchived); err != nil {
			return nil, fmt.Errorf("archiving expired thread: %w", err)
		}
		if err := g.store.Log(ctx, types.AuditThreadArchived, sender, thread.ID, map[string]any{
			"reason": "expired",
		}); err != nil {
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		thread = nil
	}
	if thread == nil {
		thread, err = g.store.CreateThread(ctx, sender, types.UrgencyNormal)
		if err != nil {
			return nil, fmt.Errorf("creating thread: %w", err)
		}
	}

	if isReset {
		if err := g.store.ResetContext(ctx, thread.ID); err != nil {
			return nil, fmt.Errorf("resetting context: %w", err)
		}
		if err := g.store.Log(ctx, types.AuditContextReset, sender, thread.ID, nil); err != nil {
			return nil, fmt.Errorf("audit reset: %w", err)
		}
		return &IngestResult{Thread: thread, WasReset: true, Urgency: types.UrgencyNormal}, nil
	}

	urgency := triage.Classify(text)
	if urgency > thread.Urgency {
		if err := g.store.UpdateThreadUrgency(ctx, thread.ID, urgency); err != nil {
			return nil, fmt.Errorf("escalating urgency: %w", err)
		}
		if err := g.store.Log(ctx, types.AuditUrgencyDetected, sender, thread.ID, map[string]any{
			"from": thread.Urgency.String(),
			"to":   urgency.String(),
		}); err != nil {
			return nil, fmt.Errorf("audit urgency: %w", err)
		}
		thread.Urgency = urgency
	} else {
		urgency = thread.Urgency
	}

	msg := &types.Message{
		ID:        types.NewMessageID(),
		ThreadID:  thread.ID,
		Content:   text,
		Direction: types.DirectionIncoming,
		Status:    types.StatusSent,
		CreatedAt: now,
	}
	if err := g.store.RecordInbound(ctx, msg, sender, map[string]any{
		"text":    text,
		"urgency": urgency.String(),
	}); err != nil {
		return nil, fmt.Errorf("recording inbound message: %w", err)
	}

	return &IngestResult{Thread: thread, WasReset: false, Urgency: urgency}, nil
}

// processRun drives one queued message end to end: ingestion, reply
// generation, the confidence gate, delivery, and context update.
func (g *Gateway) processRun(run *Run) error {
	ctx := run.Ctx
	now := time.Now()
	run.Status = RunStatusRunning
	run.StartedAt = &now

	err := g.reply(ctx, run)

	ended := time.Now()
	run.EndedAt = &ended
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err
		// The sender still hears back even when the pipeline fails.
		if sendErr := g.deliverer.Send(ctx, run.Sender, processingFailed); sendErr != nil {
			slog.Error("failure apology not delivered", "sender", run.Sender, "error", sendErr)
		}
		return err
	}
	run.Status = RunStatusComplete
	return nil
}

func (g *Gateway) reply(ctx context.Context, run *Run) error {
	res, err := g.Ingest(ctx, run.Sender, run.Text)
	if err != nil {
		return err
	}
	if res.WasReset {
		slog.Info("context reset", "sender", run.Sender, "thread", res.Thread.ID)
		return g.confirmReset(ctx, run.Sender, res.Thread.ID)
	}

	convo, err := g.store.Context(ctx, res.Thread.ID)
	if err != nil {
		return fmt.Errorf("loading context: %w", err)
	}

	pc := &types.PromptContext{
		ThreadID:    res.Thread.ID,
		Sender:      run.Sender,
		UserMessage: run.Text,
		TokensUsed:  g.estimator.Count(run.Text),
		Urgency:     res.Urgency,
	}
	if convo != nil {
		pc.History = convo.Turns
		pc.TokensUsed += convo.TokenCount
	}

	reply := g.replier.Route(ctx, pc)

	confidence := reply.Confidence
	outbound := &types.Message{
		ID:         types.NewMessageID(),
		ThreadID:   res.Thread.ID,
		Content:    reply.Text,
		Direction:  types.DirectionOutgoing,
		Status:     types.StatusPending,
		CreatedAt:  time.Now().UTC(),
		Confidence: &confidence,
	}
	if err := g.store.SaveMessage(ctx, outbound); err != nil {
		return fmt.Errorf("saving reply: %w", err)
	}

	if reply.Confidence < g.threshold {
		slog.Info("reply held for review",
			"thread", res.Thread.ID,
			"confidence", reply.Confidence,
			"model", reply.Model)
		if err := g.store.Log(ctx, types.AuditReplyHeld, run.Sender, res.Thread.ID, map[string]any{
			"message_id": string(outbound.ID),
			"confidence": reply.Confidence,
			"model":      reply.Model,
		}); err != nil {
			return fmt.Errorf("audit held reply: %w", err)
		}
	} else {
		status := types.StatusSent
		if err := g.deliverer.Send(ctx, run.Sender, reply.Text); err != nil {
			slog.Error("delivery failed", "thread", res.Thread.ID, "error", err)
			status = types.StatusFailed
		}
		if err := g.store.UpdateMessageStatus(ctx, outbound.ID, status); err != nil {
			return fmt.Errorf("updating reply status: %w", err)
		}
		if status == types.StatusSent {
			if err := g.store.Log(ctx, types.AuditSmsSent, run.Sender, res.Thread.ID, map[string]any{
				"message_id": string(outbound.ID),
				"confidence": reply.Confidence,
				"model":      reply.Model,
			}); err != nil {
				return fmt.Errorf("audit sent reply: %w", err)
			}
		}
	}

	updated := conversation.BuildUpdatedContext(res.Thread.ID, convo, run.Text, reply.Text, g.estimator, time.Now().UTC())
	if err := g.store.SaveContext(ctx, updated); err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	return nil
}

// confirmReset sends the fixed reset acknowledgement. No inference runs,
// so the reply carries full confidence and skips the gate.
func (g *Gateway) confirmReset(ctx context.Context, sender string, threadID types.ThreadID) error {
	confidence := 1.0
	msg := &types.Message{
		ID:         types.NewMessageID(),
		ThreadID:   threadID,
		Content:    resetConfirmation,
		Direction:  types.DirectionOutgoing,
		Status:     types.StatusPending,
		CreatedAt:  time.Now().UTC(),
		Confidence: &confidence,
	}
	if err := g.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("saving reset confirmation: %w", err)
	}

	status := types.StatusSent
	if err := g.deliverer.Send(ctx, sender, resetConfirmation); err != nil {
		slog.Error("reset confirmation failed", "sender", sender, "error", err)
		status = types.StatusFailed
	}
	if err := g.store.UpdateMessageStatus(ctx, msg.ID, status); err != nil {
		return fmt.Errorf("updating reset confirmation status: %w", err)
	}
	if status == types.StatusSent {
		if err := g.store.Log(ctx, types.AuditSmsSent, sender, threadID, map[string]any{
			"message_id": string(msg.ID),
			"confidence": confidence,
		}); err != nil {
			return fmt.Errorf("audit reset confirmation: %w", err)
		}
	}
	return nil
}
