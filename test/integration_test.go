//go:build integration

package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/user/careline/internal/conversation"
	"github.com/user/careline/internal/gateway"
	"github.com/user/careline/internal/ratelimit"
	"github.com/user/careline/internal/storage"
	"github.com/user/careline/internal/types"
)

// cannedReplier is a test double that returns a fixed inference result.
type cannedReplier struct {
	text       string
	confidence float64
}

func (c *cannedReplier) Route(_ context.Context, _ *types.PromptContext) *types.InferenceResult {
	return &types.InferenceResult{Text: c.text, Confidence: c.confidence, Model: "canned"}
}

type recordingDeliverer struct {
	sent []string
}

func (d *recordingDeliverer) Send(_ context.Context, _, text string) error {
	d.sent = append(d.sent, text)
	return nil
}

func TestEndToEnd(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	est := conversation.NewEstimator("gpt-4")

	deliverer := &recordingDeliverer{}
	gw := gateway.New(store, ratelimit.New(20, 100), est,
		&cannedReplier{text: "Drink fluids and rest.", confidence: 0.9},
		deliverer, 0.7, 2)

	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	// Send multiple messages from the same sender
	for i := 0; i < 3; i++ {
		if err := gw.HandleInbound(ctx, "user1", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	// Wait for processing
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		gw.Queue.WaitIdle(5 * time.Second)
	}

	// Verify a single thread was created
	thread, err := store.ThreadBySender(ctx, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if thread == nil {
		t.Fatal("expected a thread for user1")
	}
	if thread.MessageCount != 3 {
		t.Errorf("expected 3 messages, got %d", thread.MessageCount)
	}

	// Every message got a delivered reply
	if len(deliverer.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(deliverer.sent))
	}

	// Verify sequential processing (FIFO ordering within the sender's lane)
	convo, err := store.Context(ctx, thread.ID)
	if err != nil {
		t.Fatal(err)
	}
	if convo == nil || len(convo.Turns) != 6 {
		t.Fatalf("expected 6 context turns, got %+v", convo)
	}
	for i := 0; i < 3; i++ {
		want := fmt.Sprintf("message %d", i)
		if convo.Turns[i*2].Content != want {
			t.Errorf("turn %d = %q, want %q", i*2, convo.Turns[i*2].Content, want)
		}
	}
}

func TestEndToEndConfidenceGate(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	est := conversation.NewEstimator("gpt-4")

	deliverer := &recordingDeliverer{}
	gw := gateway.New(store, ratelimit.New(20, 100), est,
		&cannedReplier{text: "Uncertain advice.", confidence: 0.4},
		deliverer, 0.7, 2)

	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	if err := gw.HandleInbound(ctx, "user2", "what should I take"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	gw.Queue.WaitIdle(5 * time.Second)

	if len(deliverer.sent) != 0 {
		t.Fatalf("low-confidence reply was delivered: %v", deliverer.sent)
	}

	pending, err := store.PendingReplies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending reply, got %d", len(pending))
	}
	if pending[0].Confidence == nil || *pending[0].Confidence != 0.4 {
		t.Errorf("pending confidence = %v, want 0.4", pending[0].Confidence)
	}
}
