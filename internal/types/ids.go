// internal/types/ids.go
package types

import "github.com/google/uuid"

type ThreadID string
type MessageID string
type RunID string
type AuditID string
type ChunkID string

func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewAuditID() AuditID {
	return AuditID(uuid.New().String())
}

func NewChunkID() ChunkID {
	return ChunkID(uuid.New().String())
}
