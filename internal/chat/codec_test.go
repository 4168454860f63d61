package chat

import (
	"errors"
	"testing"
	"time"
)

func TestCodecRoundTrip(t *testing.T) {
	base := time.UnixMilli(1700000000000)

	cases := []struct {
		name string
		sess *Session
	}{
		{
			name: "greeting only",
			sess: &Session{
				SessionID:    "01ARZ3NDEKTSV4RRFFQ69G5FAV",
				Title:        DefaultTitle,
				LastActivity: base,
				Messages: []Message{
					{SequenceID: 1, Body: Greeting, Author: AuthorAssistant, CreatedAt: base},
				},
			},
		},
		{
			name: "multi message",
			sess: &Session{
				SessionID:    "01ARZ3NDEKTSV4RRFFQ69G5FAW",
				Title:        "I feel anxious about work toda...",
				LastActivity: base.Add(90*time.Second + 123*time.Millisecond),
				Messages: []Message{
					{SequenceID: 1, Body: Greeting, Author: AuthorAssistant, CreatedAt: base},
					{SequenceID: 2, Body: "I feel anxious about work today", Author: AuthorUser, CreatedAt: base.Add(30 * time.Second)},
					{SequenceID: 3, Body: "That sounds hard. Tell me more.", Author: AuthorAssistant, CreatedAt: base.Add(90*time.Second + 123*time.Millisecond)},
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := encodeSession(tc.sess)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := decodeSession(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.SessionID != tc.sess.SessionID || got.Title != tc.sess.Title {
				t.Fatalf("identity fields changed: got %q/%q", got.SessionID, got.Title)
			}
			if !got.LastActivity.Equal(tc.sess.LastActivity) {
				t.Fatalf("last activity: got %v want %v", got.LastActivity, tc.sess.LastActivity)
			}
			if len(got.Messages) != len(tc.sess.Messages) {
				t.Fatalf("message count: got %d want %d", len(got.Messages), len(tc.sess.Messages))
			}
			for i, m := range got.Messages {
				want := tc.sess.Messages[i]
				if m.SequenceID != want.SequenceID || m.Body != want.Body || m.Author != want.Author {
					t.Fatalf("message %d changed: got %+v want %+v", i, m, want)
				}
				if !m.CreatedAt.Equal(want.CreatedAt) {
					t.Fatalf("message %d timestamp: got %v want %v", i, m.CreatedAt, want.CreatedAt)
				}
			}
		})
	}
}

func TestDecodeSessionCorrupt(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{chat"},
		{"empty session id", `{"session_id":"","title":"x","last_activity":1,"messages":[{"sequence_id":1,"body":"b","author":"user","created_at":1}]}`},
		{"no messages", `{"session_id":"01X","title":"x","last_activity":1,"messages":[]}`},
		{"unknown author", `{"session_id":"01X","title":"x","last_activity":1,"messages":[{"sequence_id":1,"body":"b","author":"system","created_at":1}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeSession(tc.data); !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}
