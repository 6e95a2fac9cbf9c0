package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/careline/internal/types"
)

// Context returns the thread's conversation window, or nil if none exists.
func (s *Store) Context(ctx context.Context, threadID types.ThreadID) (*types.Context, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT turns, token_count, last_updated FROM contexts WHERE thread_id = ?",
		string(threadID))

	var turnsJSON string
	var tokenCount int
	var updated int64
	err := row.Scan(&turnsJSON, &tokenCount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading context: %w", err)
	}

	var turns []types.Turn
	if err := json.Unmarshal([]byte(turnsJSON), &turns); err != nil {
		return nil, fmt.Errorf("unmarshal context turns: %w", err)
	}

	return &types.Context{
		ThreadID:    threadID,
		Turns:       turns,
		TokenCount:  tokenCount,
		LastUpdated: fromMillis(updated),
	}, nil
}

// SaveContext replaces the thread's stored context wholesale.
func (s *Store) SaveContext(ctx context.Context, c *types.Context) error {
	turnsJSON, err := json.Marshal(c.Turns)
	if err != nil {
		return fmt.Errorf("marshal context turns: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contexts (thread_id, turns, token_count, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			turns = excluded.turns,
			token_count = excluded.token_count,
			last_updated = excluded.last_updated`,
		string(c.ThreadID), string(turnsJSON), c.TokenCount, toMillis(c.LastUpdated))
	if err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	return nil
}

// ResetContext deletes the thread's context. Deleting a thread with no
// context is a no-op.
func (s *Store) ResetContext(ctx context.Context, threadID types.ThreadID) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM contexts WHERE thread_id = ?", string(threadID)); err != nil {
		return fmt.Errorf("resetting context: %w", err)
	}
	return nil
}

// DeleteExpiredContexts removes contexts not updated since cutoff and
// returns how many were deleted.
func (s *Store) DeleteExpiredContexts(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM contexts WHERE last_updated < ?", toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting expired contexts: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
