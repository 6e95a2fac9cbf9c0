// internal/types/models.go
package types

import (
	"time"
)

// ThreadStatus is the lifecycle state of a conversation thread.
type ThreadStatus string

const (
	ThreadActive   ThreadStatus = "active"
	ThreadResolved ThreadStatus = "resolved"
	ThreadArchived ThreadStatus = "archived"
)

// Urgency is the triage severity of a message or thread. Values are
// ordered so that escalation can be checked with a plain comparison.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyUrgent
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyCritical:
		return "critical"
	case UrgencyUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ParseUrgency maps a stored label back to an Urgency. Unknown labels
// map to normal.
func ParseUrgency(s string) Urgency {
	switch s {
	case "critical":
		return UrgencyCritical
	case "urgent":
		return UrgencyUrgent
	default:
		return UrgencyNormal
	}
}

// Thread is a conversation keyed by sender identity with a bounded lifetime.
type Thread struct {
	ID            ThreadID     `json:"id"`
	Sender        string       `json:"sender"`
	Status        ThreadStatus `json:"status"`
	Urgency       Urgency      `json:"urgency"`
	CreatedAt     time.Time    `json:"created_at"`
	LastMessageAt time.Time    `json:"last_message_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
	MessageCount  int          `json:"message_count"`
}

// Direction distinguishes inbound from outbound messages.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// MessageStatus is the delivery state of a message. Inbound messages are
// recorded as sent; outbound messages start pending and move to sent or
// failed after a delivery attempt.
type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// Message is a single inbound or outbound message belonging to a thread.
type Message struct {
	ID         MessageID     `json:"id"`
	ThreadID   ThreadID      `json:"thread_id"`
	Content    string        `json:"content"`
	Direction  Direction     `json:"direction"`
	Status     MessageStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	Confidence *float64      `json:"confidence,omitempty"`
	Manual     bool          `json:"manual"`
}

// Turn is one side of a conversation exchange kept in the rolling context
// window for prompt building.
type Turn struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Context is the rolling conversation window for a thread. It is replaced
// wholesale on every update so the token accounting stays consistent with
// the retained turns.
type Context struct {
	ThreadID    ThreadID  `json:"thread_id"`
	Turns       []Turn    `json:"turns"`
	TokenCount  int       `json:"token_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// AuditEventType identifies a state transition recorded in the audit trail.
type AuditEventType string

const (
	AuditSmsReceived     AuditEventType = "sms_received"
	AuditSmsSent         AuditEventType = "sms_sent"
	AuditManualReply     AuditEventType = "manual_reply"
	AuditUrgencyDetected AuditEventType = "urgency_detected"
	AuditContextReset    AuditEventType = "context_reset"
	AuditThreadArchived  AuditEventType = "thread_archived"
	AuditRateLimited     AuditEventType = "rate_limited"
	AuditReplyHeld       AuditEventType = "reply_held"
)

// AuditEvent is one append-only audit trail row.
type AuditEvent struct {
	ID       AuditID        `json:"id"`
	Type     AuditEventType `json:"type"`
	ActorID  string         `json:"actor_id,omitempty"`
	ThreadID ThreadID       `json:"thread_id,omitempty"`
	Details  map[string]any `json:"details"`
	At       time.Time      `json:"at"`
	Synced   bool           `json:"synced"`
}

// Chunk is an indexed reference passage with its embedding. Immutable once
// indexed, except for bulk delete by source.
type Chunk struct {
	ID        ChunkID           `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// PromptContext carries everything the inference paths need for one reply.
type PromptContext struct {
	ThreadID    ThreadID
	Sender      string
	UserMessage string
	History     []Turn
	TokensUsed  int
	Urgency     Urgency
}

// InferenceResult is the outcome of one inference path, local or cloud.
type InferenceResult struct {
	Text            string
	Confidence      float64
	TokensGenerated int
	Latency         time.Duration
	Model           string
}
