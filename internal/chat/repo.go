package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mindfulhq/mindful/internal/store"
)

// Repository orchestrates the session index and per-session bodies over a
// durable KV store. Every mutating operation updates both the body record
// and the index, or reports why it could not; the in-memory copies held by
// callers are a cache over what the store acknowledged.
type Repository struct {
	kv   store.KV
	warn func(format string, args ...any)
	now  func() time.Time
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithWarnFunc installs a hook for self-healed conditions (dropped corrupt
// summaries). Default is to stay silent.
func WithWarnFunc(f func(format string, args ...any)) RepositoryOption {
	return func(r *Repository) { r.warn = f }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) { r.now = now }
}

func NewRepository(kv store.KV, opts ...RepositoryOption) *Repository {
	r := &Repository{
		kv:   kv,
		warn: func(string, ...any) {},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) newDefaultSession() (*Session, error) {
	sid, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	now := r.now()
	return &Session{
		SessionID: sid,
		Title:     DefaultTitle,
		Messages: []Message{{
			SequenceID: 1,
			Body:       Greeting,
			Author:     AuthorAssistant,
			CreatedAt:  now,
		}},
		LastActivity: now,
	}, nil
}

func (r *Repository) loadBody(ctx context.Context, userID, sessionID string) (*Session, error) {
	data, err := r.kv.Get(ctx, bodyKey(userID, sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: load session %s: %v", ErrStorageFailure, sessionID, err)
	}
	return decodeSession(data)
}

func (r *Repository) saveBody(ctx context.Context, userID string, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return fmt.Errorf("%w: encode session %s: %v", ErrStorageFailure, sess.SessionID, err)
	}
	if err := r.kv.Set(ctx, bodyKey(userID, sess.SessionID), data); err != nil {
		return fmt.Errorf("%w: save session %s: %v", ErrStorageFailure, sess.SessionID, err)
	}
	return nil
}

// EnsureInitialized loads the user's catalog and returns the active session
// plus the display-ordered summaries. With an empty catalog it synthesizes
// the default session; otherwise the most recently active loadable session
// wins. This is the only place default sessions are synthesized.
func (r *Repository) EnsureInitialized(ctx context.Context, userID string) (*Session, []Summary, error) {
	summaries, err := r.loadIndex(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrCorruptRecord) {
			return nil, nil, err
		}
		// Unreadable catalog: treat as empty and rebuild from scratch.
		r.warn("dropping corrupt index for user %s: %v", userID, err)
		summaries = nil
	}

	sortSummaries(summaries)
	for len(summaries) > 0 {
		sess, err := r.loadBody(ctx, userID, summaries[0].SessionID)
		if err == nil {
			return sess, summaries, nil
		}
		if errors.Is(err, ErrStorageFailure) {
			return nil, nil, err
		}
		// Missing or corrupt body: drop the dangling summary and try the
		// next most recent session.
		r.warn("dropping session %s for user %s: %v", summaries[0].SessionID, userID, err)
		summaries = summaries[1:]
		if err := r.saveIndex(ctx, userID, summaries); err != nil {
			return nil, nil, err
		}
	}

	sess, err := r.newDefaultSession()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: new session id: %v", ErrStorageFailure, err)
	}
	if err := r.saveBody(ctx, userID, sess); err != nil {
		return nil, nil, err
	}
	summaries = []Summary{sess.summary()}
	if err := r.saveIndex(ctx, userID, summaries); err != nil {
		return sess, summaries, fmt.Errorf("%w: %v", ErrPartialPersistence, err)
	}
	return sess, summaries, nil
}

// CreateSession persists a fresh session seeded with the greeting message
// and adds its summary to the index.
func (r *Repository) CreateSession(ctx context.Context, userID string) (*Session, error) {
	sess, err := r.newDefaultSession()
	if err != nil {
		return nil, fmt.Errorf("%w: new session id: %v", ErrStorageFailure, err)
	}
	if err := r.saveBody(ctx, userID, sess); err != nil {
		return nil, err
	}
	summaries, err := r.loadIndex(ctx, userID)
	if err != nil {
		return sess, fmt.Errorf("%w: %v", ErrPartialPersistence, err)
	}
	summaries = append(summaries, sess.summary())
	if err := r.saveIndex(ctx, userID, summaries); err != nil {
		return sess, fmt.Errorf("%w: %v", ErrPartialPersistence, err)
	}
	return sess, nil
}

// SelectSession loads the full body of an indexed session. A missing or
// corrupt body drops the summary from the index as a repair action; the
// error is still surfaced.
func (r *Repository) SelectSession(ctx context.Context, userID, sessionID string) (*Session, error) {
	summaries, err := r.loadIndex(ctx, userID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, s := range summaries {
		if s.SessionID == sessionID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	sess, err := r.loadBody(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorruptRecord) {
			r.warn("dropping session %s for user %s: %v", sessionID, userID, err)
			if saveErr := r.saveIndex(ctx, userID, removeSummary(summaries, sessionID)); saveErr != nil {
				return nil, saveErr
			}
		}
		return nil, err
	}
	return sess, nil
}

// AppendMessage assigns the next sequence ID, appends the message, updates
// the title and last-activity, and writes body and index as one unit. If
// the body write lands but the index cannot be confirmed, the session is
// returned alongside ErrPartialPersistence; the append must not be retried,
// only RepairIndex.
func (r *Repository) AppendMessage(ctx context.Context, userID, sessionID string, author Author, body string) (*Session, error) {
	if !author.valid() {
		return nil, fmt.Errorf("chat: invalid author %q", author)
	}
	sess, err := r.loadBody(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	msg := Message{
		SequenceID: sess.Messages[len(sess.Messages)-1].SequenceID + 1,
		Body:       body,
		Author:     author,
		CreatedAt:  r.now(),
	}
	sess.Messages = append(sess.Messages, msg)
	sess.LastActivity = msg.CreatedAt

	// Title comes from the first user message; an already-derived or
	// explicitly set title is never overwritten.
	if sess.Title == DefaultTitle {
		for _, m := range sess.Messages {
			if m.Author == AuthorUser {
				sess.Title = deriveTitle(m.Body)
				break
			}
		}
	}

	if err := r.saveBody(ctx, userID, sess); err != nil {
		return nil, err
	}

	summaries, err := r.loadIndex(ctx, userID)
	if err != nil {
		return sess, fmt.Errorf("%w: %v", ErrPartialPersistence, err)
	}
	replaced := false
	for i := range summaries {
		if summaries[i].SessionID == sessionID {
			summaries[i] = sess.summary()
			replaced = true
			break
		}
	}
	if !replaced {
		summaries = append(summaries, sess.summary())
	}
	if err := r.saveIndex(ctx, userID, summaries); err != nil {
		return sess, fmt.Errorf("%w: %v", ErrPartialPersistence, err)
	}
	return sess, nil
}

// DeleteSession removes the body record and the index entry. It never
// synthesizes a replacement; callers needing the always-one-session
// invariant restored follow up with EnsureInitialized.
func (r *Repository) DeleteSession(ctx context.Context, userID, sessionID string) error {
	summaries, err := r.loadIndex(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	for _, s := range summaries {
		if s.SessionID == sessionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err := r.kv.Delete(ctx, bodyKey(userID, sessionID)); err != nil {
		return fmt.Errorf("%w: delete session %s: %v", ErrStorageFailure, sessionID, err)
	}
	if err := r.saveIndex(ctx, userID, removeSummary(summaries, sessionID)); err != nil {
		return fmt.Errorf("%w: %v", ErrPartialPersistence, err)
	}
	return nil
}

// ListSessions projects the index in display order.
func (r *Repository) ListSessions(ctx context.Context, userID string) ([]Summary, error) {
	summaries, err := r.loadIndex(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortSummaries(summaries)
	return summaries, nil
}

// RepairIndex recomputes every summary from its body and rewrites the
// catalog. Bodies that are missing or corrupt are dropped; sessions passed
// as known are merged in even if the stored index lost them. Idempotent,
// so it is the safe retry for ErrPartialPersistence.
func (r *Repository) RepairIndex(ctx context.Context, userID string, known ...*Session) error {
	summaries, err := r.loadIndex(ctx, userID)
	if err != nil && !errors.Is(err, ErrCorruptRecord) {
		return err
	}

	rebuilt := make([]Summary, 0, len(summaries)+len(known))
	seen := make(map[string]bool, len(summaries)+len(known))
	for _, sum := range summaries {
		sess, err := r.loadBody(ctx, userID, sum.SessionID)
		if err != nil {
			if errors.Is(err, ErrStorageFailure) {
				return err
			}
			r.warn("dropping session %s for user %s: %v", sum.SessionID, userID, err)
			continue
		}
		rebuilt = append(rebuilt, sess.summary())
		seen[sess.SessionID] = true
	}
	for _, sess := range known {
		if sess == nil || seen[sess.SessionID] {
			continue
		}
		rebuilt = append(rebuilt, sess.summary())
		seen[sess.SessionID] = true
	}
	return r.saveIndex(ctx, userID, rebuilt)
}

func removeSummary(summaries []Summary, sessionID string) []Summary {
	out := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if s.SessionID != sessionID {
			out = append(out, s)
		}
	}
	return out
}
