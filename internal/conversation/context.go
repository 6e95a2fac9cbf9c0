// Package conversation holds the rolling-window and lifetime rules for
// thread contexts: the reset command, the 72-hour TTL, and the bounded
// turn window with its token accounting.
package conversation

import (
	"strings"
	"time"

	"github.com/user/careline/internal/types"
)

const (
	// WindowSize is the number of user/assistant pairs retained.
	WindowSize = 3

	// ThreadTTL bounds both thread and context lifetime.
	ThreadTTL = 72 * time.Hour

	// ResetCommand clears a thread's context when received verbatim.
	ResetCommand = "RESET"
)

// IsResetCommand reports whether the message is the reset control command:
// trimmed, case-normalized equality to the reset keyword.
func IsResetCommand(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), ResetCommand)
}

// ExpiredTTL reports whether the context has gone unused past its lifetime.
func ExpiredTTL(c *types.Context, now time.Time) bool {
	return now.Sub(c.LastUpdated) > ThreadTTL
}

// BuildUpdatedContext appends the latest user/assistant exchange to the
// existing context, truncates to the most recent 2×WindowSize turns
// (oldest dropped first), and recomputes the token estimate from the
// retained turns only. The returned context replaces the stored one
// wholesale.
func BuildUpdatedContext(threadID types.ThreadID, existing *types.Context, userMessage, reply string, est *Estimator, now time.Time) *types.Context {
	var turns []types.Turn
	if existing != nil {
		turns = append(turns, existing.Turns...)
	}
	turns = append(turns,
		types.Turn{Role: "user", Content: userMessage, At: now},
		types.Turn{Role: "assistant", Content: reply, At: now},
	)

	maxTurns := WindowSize * 2
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	contents := make([]string, len(turns))
	for i, turn := range turns {
		contents[i] = turn.Content
	}

	return &types.Context{
		ThreadID:    threadID,
		Turns:       turns,
		TokenCount:  est.CountAll(contents),
		LastUpdated: now,
	}
}
