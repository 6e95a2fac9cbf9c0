package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/careline/internal/conversation"
	"github.com/user/careline/internal/types"
)

// CreateThread inserts a new active thread for the sender. Expiry is fixed
// at creation time plus the thread TTL.
func (s *Store) CreateThread(ctx context.Context, sender string, urgency types.Urgency) (*types.Thread, error) {
	now := time.Now().UTC()
	thread := &types.Thread{
		ID:            types.NewThreadID(),
		Sender:        sender,
		Status:        types.ThreadActive,
		Urgency:       urgency,
		CreatedAt:     now,
		LastMessageAt: now,
		ExpiresAt:     now.Add(conversation.ThreadTTL),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, sender, status, urgency, created_at, last_message_at, expires_at, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		string(thread.ID), thread.Sender, string(thread.Status), thread.Urgency.String(),
		toMillis(thread.CreatedAt), toMillis(thread.LastMessageAt), toMillis(thread.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("inserting thread: %w", err)
	}
	return thread, nil
}

func scanThread(row interface{ Scan(...any) error }) (*types.Thread, error) {
	var t types.Thread
	var id, status, urgency string
	var created, last, expires int64
	if err := row.Scan(&id, &t.Sender, &status, &urgency, &created, &last, &expires, &t.MessageCount); err != nil {
		return nil, err
	}
	t.ID = types.ThreadID(id)
	t.Status = types.ThreadStatus(status)
	t.Urgency = types.ParseUrgency(urgency)
	t.CreatedAt = fromMillis(created)
	t.LastMessageAt = fromMillis(last)
	t.ExpiresAt = fromMillis(expires)
	return &t, nil
}

const threadColumns = "id, sender, status, urgency, created_at, last_message_at, expires_at, message_count"

// Thread returns the thread with the given ID.
func (s *Store) Thread(ctx context.Context, id types.ThreadID) (*types.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+threadColumns+" FROM threads WHERE id = ?", string(id))
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}
	return t, nil
}

// ThreadBySender returns the sender's most recent non-archived thread, or
// nil if they have none.
func (s *Store) ThreadBySender(ctx context.Context, sender string) (*types.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+threadColumns+` FROM threads
		 WHERE sender = ? AND status != ?
		 ORDER BY created_at DESC LIMIT 1`,
		sender, string(types.ThreadArchived))
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread by sender: %w", err)
	}
	return t, nil
}

// ListThreads returns all threads, most recently active first.
func (s *Store) ListThreads(ctx context.Context) ([]*types.Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+threadColumns+" FROM threads ORDER BY last_message_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var threads []*types.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// UpdateThreadStatus sets the thread's lifecycle status.
func (s *Store) UpdateThreadStatus(ctx context.Context, id types.ThreadID, status types.ThreadStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE threads SET status = ? WHERE id = ?", string(status), string(id))
	if err != nil {
		return fmt.Errorf("updating thread status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("thread not found: %s", id)
	}
	return nil
}

// UpdateThreadUrgency records an urgency escalation. The caller checks
// monotonicity before calling.
func (s *Store) UpdateThreadUrgency(ctx context.Context, id types.ThreadID, urgency types.Urgency) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE threads SET urgency = ? WHERE id = ?", urgency.String(), string(id))
	if err != nil {
		return fmt.Errorf("updating thread urgency: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("thread not found: %s", id)
	}
	return nil
}

// ArchiveExpired archives every active or resolved thread whose expiry has
// passed. The single guarded UPDATE cannot interleave partially with an
// ingestion writing the same thread.
func (s *Store) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE threads SET status = ? WHERE status != ? AND expires_at < ?",
		string(types.ThreadArchived), string(types.ThreadArchived), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("archiving expired threads: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
