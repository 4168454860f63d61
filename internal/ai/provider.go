// Package ai holds the remote completion providers the chat controller
// talks to.
package ai

import "context"

// Message is one turn of provider context.
type Message struct {
	Role    string
	Content string
}

// Provider turns conversation context into an assistant reply. Any error,
// transport or payload, means the turn failed and nothing is persisted.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
