package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire form of a session body. Timestamps are epoch milliseconds so the
// round trip is lossless to millisecond precision regardless of zone.
type storedSession struct {
	SessionID    string          `json:"session_id"`
	Title        string          `json:"title"`
	LastActivity int64           `json:"last_activity"`
	Messages     []storedMessage `json:"messages"`
}

type storedMessage struct {
	SequenceID int    `json:"sequence_id"`
	Body       string `json:"body"`
	Author     string `json:"author"`
	CreatedAt  int64  `json:"created_at"`
}

// encodeSession serializes a session for the durable store.
func encodeSession(s *Session) (string, error) {
	out := storedSession{
		SessionID:    s.SessionID,
		Title:        s.Title,
		LastActivity: s.LastActivity.UnixMilli(),
		Messages:     make([]storedMessage, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, storedMessage{
			SequenceID: m.SequenceID,
			Body:       m.Body,
			Author:     string(m.Author),
			CreatedAt:  m.CreatedAt.UnixMilli(),
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeSession rehydrates a stored session body. Malformed input is
// reported as ErrCorruptRecord; the error never escapes unclassified.
func decodeSession(data string) (*Session, error) {
	var in storedSession
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if in.SessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrCorruptRecord)
	}
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("%w: session %s has no messages", ErrCorruptRecord, in.SessionID)
	}
	sess := &Session{
		SessionID:    in.SessionID,
		Title:        in.Title,
		LastActivity: time.UnixMilli(in.LastActivity),
		Messages:     make([]Message, 0, len(in.Messages)),
	}
	for _, m := range in.Messages {
		author := Author(m.Author)
		if !author.valid() {
			return nil, fmt.Errorf("%w: session %s has unknown author %q", ErrCorruptRecord, in.SessionID, m.Author)
		}
		sess.Messages = append(sess.Messages, Message{
			SequenceID: m.SequenceID,
			Body:       m.Body,
			Author:     author,
			CreatedAt:  time.UnixMilli(m.CreatedAt),
		})
	}
	return sess, nil
}
