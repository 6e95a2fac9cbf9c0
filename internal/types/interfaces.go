// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// ThreadStore owns thread existence, expiry, and urgency escalation.
type ThreadStore interface {
	CreateThread(ctx context.Context, sender string, urgency Urgency) (*Thread, error)
	Thread(ctx context.Context, id ThreadID) (*Thread, error)
	// ThreadBySender returns the most recent non-archived thread for the
	// sender, or nil if none exists.
	ThreadBySender(ctx context.Context, sender string) (*Thread, error)
	ListThreads(ctx context.Context) ([]*Thread, error)
	UpdateThreadStatus(ctx context.Context, id ThreadID, status ThreadStatus) error
	// UpdateThreadUrgency records an escalation. Callers must pre-check
	// that the new level exceeds the current one.
	UpdateThreadUrgency(ctx context.Context, id ThreadID, urgency Urgency) error
	// ArchiveExpired archives every active thread whose expiry has passed
	// and returns how many were archived.
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
}

// MessageStore persists messages and their delivery status.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) error
	// RecordInbound persists an inbound message, bumps its thread's
	// counters, and writes the sms_received audit entry atomically.
	RecordInbound(ctx context.Context, msg *Message, sender string, details map[string]any) error
	Message(ctx context.Context, id MessageID) (*Message, error)
	UpdateMessageStatus(ctx context.Context, id MessageID, status MessageStatus) error
	// PendingReplies returns outgoing messages that have not been sent:
	// replies held for review and failed deliveries awaiting manual resend.
	PendingReplies(ctx context.Context) ([]*Message, error)
}

// ContextStore persists the per-thread rolling conversation window.
type ContextStore interface {
	// Context returns the thread's conversation window, or nil if none.
	Context(ctx context.Context, threadID ThreadID) (*Context, error)
	SaveContext(ctx context.Context, c *Context) error
	ResetContext(ctx context.Context, threadID ThreadID) error
	// DeleteExpiredContexts removes contexts not updated since cutoff.
	DeleteExpiredContexts(ctx context.Context, cutoff time.Time) (int, error)
}

// AuditStore is the append-only compliance trail.
type AuditStore interface {
	Log(ctx context.Context, typ AuditEventType, actorID string, threadID ThreadID, details map[string]any) error
	Unsynced(ctx context.Context) ([]*AuditEvent, error)
	MarkSynced(ctx context.Context, ids []AuditID) error
	// PruneSynced deletes synced rows older than cutoff. Unsynced rows are
	// never deleted.
	PruneSynced(ctx context.Context, cutoff time.Time) (int, error)
	EventsByThread(ctx context.Context, threadID ThreadID) ([]*AuditEvent, error)
}

// ChunkStore persists indexed reference passages in insertion order.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []*Chunk) error
	AllChunks(ctx context.Context) ([]*Chunk, error)
	DeleteChunksBySource(ctx context.Context, source string) (int, error)
	CountChunks(ctx context.Context) (int, error)
}

// LocalEngine is the on-device inference runtime.
type LocalEngine interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (*InferenceResult, error)
	Ready() bool
}

// Embedder turns text into a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Connectivity reports whether the network path to the cloud backend is up.
type Connectivity interface {
	Online() bool
}

// Transport is the physical messaging channel. Segments of one logical
// message are sent as a single multipart operation.
type Transport interface {
	Send(ctx context.Context, recipient string, segments []string) error
}

// AlertDispatcher escalates critical cases to a human responder.
// Fire-and-forget, at-least-once.
type AlertDispatcher interface {
	Dispatch(recipient, message string, urgency Urgency)
}
