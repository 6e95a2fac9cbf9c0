package conversation

import (
	"fmt"
	"testing"
	"time"

	"github.com/user/careline/internal/types"
)

func newEstimator(t *testing.T) *Estimator {
	t.Helper()
	return NewEstimator("gpt-4")
}

func TestIsResetCommand(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"RESET", true},
		{"reset", true},
		{"  Reset  ", true},
		{"RESET please", false},
		{"restart", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsResetCommand(tt.text); got != tt.want {
			t.Errorf("IsResetCommand(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestBuildUpdatedContextWindow(t *testing.T) {
	est := newEstimator(t)
	now := time.Now()
	threadID := types.NewThreadID()

	var ctx *types.Context
	// Five exchanges = 10 turns fed in total.
	for i := 0; i < 5; i++ {
		ctx = BuildUpdatedContext(threadID, ctx,
			fmt.Sprintf("question %d", i),
			fmt.Sprintf("answer %d", i),
			est, now)
	}

	if len(ctx.Turns) != WindowSize*2 {
		t.Fatalf("expected %d retained turns, got %d", WindowSize*2, len(ctx.Turns))
	}
	// Oldest dropped first: the window starts at exchange 2.
	if ctx.Turns[0].Content != "question 2" {
		t.Errorf("expected oldest retained turn to be question 2, got %q", ctx.Turns[0].Content)
	}
	if last := ctx.Turns[len(ctx.Turns)-1]; last.Content != "answer 4" || last.Role != "assistant" {
		t.Errorf("unexpected newest turn: %+v", last)
	}
}

func TestBuildUpdatedContextTokenCount(t *testing.T) {
	est := newEstimator(t)
	now := time.Now()
	threadID := types.NewThreadID()

	// Seed with a long exchange that will be evicted from the window.
	long := "this is a deliberately long first message that should not count once evicted from the rolling window of retained conversation turns"
	ctx := BuildUpdatedContext(threadID, nil, long, long, est, now)
	for i := 0; i < WindowSize; i++ {
		ctx = BuildUpdatedContext(threadID, ctx, "hi", "hello", est, now)
	}

	// Token count must reflect only the retained short turns.
	want := 0
	for _, turn := range ctx.Turns {
		want += est.Count(turn.Content)
	}
	if ctx.TokenCount != want {
		t.Errorf("token count %d does not match retained turns total %d", ctx.TokenCount, want)
	}
	if ctx.TokenCount >= est.Count(long) {
		t.Errorf("token count %d still includes evicted turns", ctx.TokenCount)
	}
}

func TestBuildUpdatedContextFromEmpty(t *testing.T) {
	est := newEstimator(t)
	ctx := BuildUpdatedContext(types.NewThreadID(), nil, "I have a fever", "Rest and drink fluids.", est, time.Now())

	if len(ctx.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(ctx.Turns))
	}
	if ctx.Turns[0].Role != "user" || ctx.Turns[1].Role != "assistant" {
		t.Errorf("unexpected turn roles: %s, %s", ctx.Turns[0].Role, ctx.Turns[1].Role)
	}
	if ctx.TokenCount <= 0 {
		t.Error("expected positive token count")
	}
}

func TestExpiredTTL(t *testing.T) {
	now := time.Now()
	ctx := &types.Context{LastUpdated: now.Add(-ThreadTTL - time.Second)}
	if !ExpiredTTL(ctx, now) {
		t.Error("context past TTL should be expired")
	}

	fresh := &types.Context{LastUpdated: now.Add(-time.Hour)}
	if ExpiredTTL(fresh, now) {
		t.Error("recent context should not be expired")
	}
}
