package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/careline/internal/types"
)

// execer is satisfied by both *sql.DB and *sql.Tx, so audit rows can be
// written standalone or inside a larger transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Log appends an event to the audit trail. Rows start unsynced.
func (s *Store) Log(ctx context.Context, typ types.AuditEventType, actorID string, threadID types.ThreadID, details map[string]any) error {
	return insertAuditEvent(ctx, s.db, typ, actorID, threadID, details)
}

func insertAuditEvent(ctx context.Context, db execer, typ types.AuditEventType, actorID string, threadID types.ThreadID, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var actor, thread sql.NullString
	if actorID != "" {
		actor = sql.NullString{String: actorID, Valid: true}
	}
	if threadID != "" {
		thread = sql.NullString{String: string(threadID), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, actor_id, thread_id, details, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		string(types.NewAuditID()), string(typ), actor, thread,
		string(detailsJSON), toMillis(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

const auditColumns = "id, event_type, actor_id, thread_id, details, created_at, synced"

func scanAuditEvent(row interface{ Scan(...any) error }) (*types.AuditEvent, error) {
	var e types.AuditEvent
	var id, typ, detailsJSON string
	var actor, thread sql.NullString
	var created int64
	if err := row.Scan(&id, &typ, &actor, &thread, &detailsJSON, &created, &e.Synced); err != nil {
		return nil, err
	}
	e.ID = types.AuditID(id)
	e.Type = types.AuditEventType(typ)
	e.ActorID = actor.String
	e.ThreadID = types.ThreadID(thread.String)
	e.At = fromMillis(created)
	if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
		e.Details = map[string]any{}
	}
	return &e, nil
}

func (s *Store) queryAuditEvents(ctx context.Context, query string, args ...any) ([]*types.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var events []*types.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Unsynced returns all events not yet synced, oldest first.
func (s *Store) Unsynced(ctx context.Context) ([]*types.AuditEvent, error) {
	return s.queryAuditEvents(ctx,
		"SELECT "+auditColumns+" FROM audit_log WHERE synced = 0 ORDER BY created_at")
}

// EventsByThread returns the thread's audit history, oldest first.
func (s *Store) EventsByThread(ctx context.Context, threadID types.ThreadID) ([]*types.AuditEvent, error) {
	return s.queryAuditEvents(ctx,
		"SELECT "+auditColumns+" FROM audit_log WHERE thread_id = ? ORDER BY created_at",
		string(threadID))
}

// MarkSynced flips the given events to synced. Idempotent; already-synced
// rows are unaffected.
func (s *Store) MarkSynced(ctx context.Context, ids []types.AuditID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE audit_log SET synced = 1 WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("marking audit events synced: %w", err)
	}
	return nil
}

// PruneSynced deletes synced rows older than cutoff. Unsynced rows are
// never deleted, whatever their age.
func (s *Store) PruneSynced(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE synced = 1 AND created_at < ?", toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning audit log: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
