// Package chat implements the multi-session conversation store: the
// per-user session catalog, durable session bodies, and the controller
// that drives them from UI events.
package chat

import (
	"time"
	"unicode/utf8"
)

// Author tags who wrote a message. The set is closed.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

func (a Author) valid() bool {
	return a == AuthorUser || a == AuthorAssistant
}

const (
	// DefaultTitle is the sentinel title of a session that has not yet
	// received a user message.
	DefaultTitle = "New Chat"

	// Greeting seeds every new session as its first assistant message.
	Greeting = "Hi there! I'm Mindful, your AI mental health companion. How are you feeling today?"

	titleBudget   = 30
	previewBudget = 30
)

type Message struct {
	SequenceID int       `json:"sequence_id"`
	Body       string    `json:"body"`
	Author     Author    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
}

type Session struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
}

// Summary is the index projection of a Session: everything the session
// list needs without loading message bodies.
type Summary struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"last_activity"`
	Preview      string    `json:"preview,omitempty"`
}

func (s *Session) summary() Summary {
	sum := Summary{
		SessionID:    s.SessionID,
		Title:        s.Title,
		LastActivity: s.LastActivity,
	}
	if n := len(s.Messages); n > 0 {
		sum.Preview = truncate(s.Messages[n-1].Body, previewBudget)
	}
	return sum
}

// deriveTitle builds a session title from the first user message,
// truncated to the title budget with an ellipsis marker.
func deriveTitle(body string) string {
	if utf8.RuneCountInString(body) <= titleBudget {
		return body
	}
	return truncate(body, titleBudget) + "..."
}

func truncate(s string, budget int) string {
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget])
}
