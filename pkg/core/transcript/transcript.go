// Package transcript defines the message model shared by the live avatar
// call and the streaming text chat: one immutable utterance type for call
// transcripts and one mutable-while-streaming turn type for chat history.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced an utterance in a live call.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAvatar Sender = "avatar"
)

// Role identifies who produced a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one utterance captured during a live avatar call. Messages are
// immutable once created and collected into an append-only, ordered sequence
// owned by the session.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	OffsetMs  int64     `json:"offset_ms"`
}

// NewMessage captures an utterance at now, with the offset computed from the
// session start time.
func NewMessage(sender Sender, text string, sessionStart time.Time) Message {
	now := time.Now()
	return Message{
		Sender:    sender,
		Text:      text,
		Timestamp: now,
		OffsetMs:  now.Sub(sessionStart).Milliseconds(),
	}
}

// ChatMessage is one finalized turn in a text conversation. An assistant
// message only exists once its stream has completed; in-progress partials live
// in the chat controller's streaming buffer, never in the finalized sequence.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage creates a finalized chat message with a fresh ID.
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}
