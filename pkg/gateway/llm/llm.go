// Package llm abstracts the chat completion backend behind a streaming
// interface so handlers can be exercised with a scripted provider in tests.
package llm

import "context"

type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Provider streams a completion for the conversation. onDelta receives each
// text fragment as it arrives; the return value is the full assembled reply.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message, onDelta func(text string)) (string, error)
}
