// Package entities contains core business entities.
// These are plain domain objects with no knowledge of transport or storage.
package entities

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddableChunk is a piece of the reference corpus with a precomputed embedding.
// Chunks are immutable once loaded.
type EmbeddableChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// RankedChunk is a chunk scored against a query embedding.
type RankedChunk struct {
	EmbeddableChunk
	Similarity float64 `json:"similarity"`
}

// Outbound is the live transport side of a user session.
// Implementations must treat a send on a closed transport as a no-op.
type Outbound interface {
	Send(v any) bool
}

// User is the in-memory state behind a durable user identifier.
// Conn is nil whenever IsActive is false.
type User struct {
	ID          uuid.UUID
	DisplayName string
	IsActive    bool
	Conn        Outbound
}

// MessageType tells which side of the conversation a ChatMessage belongs to.
type MessageType string

const (
	// MessageIncoming is a message sent by the server to the user.
	MessageIncoming MessageType = "incoming"
	// MessageOutgoing is a message sent by the user.
	MessageOutgoing MessageType = "outgoing"
)

// ChatMessage is the wire representation of a single chat turn.
type ChatMessage struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
}

// NewIncomingMessage builds a server-originated message with a fresh id.
func NewIncomingMessage(text string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Type:      MessageIncoming,
		Text:      text,
		Timestamp: now.UnixMilli(),
	}
}

// Document is a source text file fed to the indexer.
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
