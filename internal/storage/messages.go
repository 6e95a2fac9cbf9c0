package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/user/careline/internal/types"
)

const messageColumns = "id, thread_id, content, direction, status, created_at, confidence, manual"

// SaveMessage inserts a message row.
func (s *Store) SaveMessage(ctx context.Context, msg *types.Message) error {
	var confidence sql.NullFloat64
	if msg.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *msg.Confidence, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, content, direction, status, created_at, confidence, manual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(msg.ID), string(msg.ThreadID), msg.Content, string(msg.Direction),
		string(msg.Status), toMillis(msg.CreatedAt), confidence, msg.Manual)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// RecordInbound persists an inbound message, bumps its thread's counters,
// and appends the sms_received audit entry in one transaction. Either all
// three land or none do.
func (s *Store) RecordInbound(ctx context.Context, msg *types.Message, sender string, details map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inbound record: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, content, direction, status, created_at, confidence, manual)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0)`,
		string(msg.ID), string(msg.ThreadID), msg.Content, string(msg.Direction),
		string(msg.Status), toMillis(msg.CreatedAt)); err != nil {
		return fmt.Errorf("inserting inbound message: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE threads SET message_count = message_count + 1, last_message_at = ? WHERE id = ?",
		toMillis(msg.CreatedAt), string(msg.ThreadID))
	if err != nil {
		return fmt.Errorf("bumping thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("thread not found: %s", msg.ThreadID)
	}

	if err := insertAuditEvent(ctx, tx, types.AuditSmsReceived, sender, msg.ThreadID, details); err != nil {
		return err
	}

	return tx.Commit()
}

func scanMessage(row interface{ Scan(...any) error }) (*types.Message, error) {
	var m types.Message
	var id, threadID, direction, status string
	var created int64
	var confidence sql.NullFloat64
	if err := row.Scan(&id, &threadID, &m.Content, &direction, &status, &created, &confidence, &m.Manual); err != nil {
		return nil, err
	}
	m.ID = types.MessageID(id)
	m.ThreadID = types.ThreadID(threadID)
	m.Direction = types.Direction(direction)
	m.Status = types.MessageStatus(status)
	m.CreatedAt = fromMillis(created)
	if confidence.Valid {
		c := confidence.Float64
		m.Confidence = &c
	}
	return &m, nil
}

// Message returns the message with the given ID.
func (s *Store) Message(ctx context.Context, id types.MessageID) (*types.Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", string(id))
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading message: %w", err)
	}
	return m, nil
}

// UpdateMessageStatus records the outcome of a delivery attempt. Status
// never reverts from sent or failed back to pending.
func (s *Store) UpdateMessageStatus(ctx context.Context, id types.MessageID, status types.MessageStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET status = ? WHERE id = ?", string(status), string(id))
	if err != nil {
		return fmt.Errorf("updating message status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message not found: %s", id)
	}
	return nil
}

// PendingReplies returns outgoing messages awaiting operator action: held
// below the confidence gate, or failed after delivery retries.
func (s *Store) PendingReplies(ctx context.Context) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageColumns+` FROM messages
		 WHERE direction = ? AND status != ?
		 ORDER BY created_at`,
		string(types.DirectionOutgoing), string(types.StatusSent))
	if err != nil {
		return nil, fmt.Errorf("listing pending replies: %w", err)
	}
	defer rows.Close()

	var msgs []*types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
