package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mindfulhq/mindful/internal/ai"
)

// State of the controller's send cycle.
type State int

const (
	// StateIdle accepts user input and session commands.
	StateIdle State = iota
	// StateAwaitingReply has one completion call outstanding.
	StateAwaitingReply
	// StateFailed holds a remote failure until the user acknowledges it.
	StateFailed
)

var (
	// ErrBusy rejects an event the current state does not accept. The
	// event is ignored, never queued.
	ErrBusy = errors.New("chat: a reply is still outstanding")

	// ErrEmptyMessage rejects empty or whitespace-only input.
	ErrEmptyMessage = errors.New("chat: empty message")
)

// User-facing notice texts.
const (
	NoticePersistence = "Your conversation may not be saved."
	NoticeReplyFailed = "Failed to get a response. Please try again."
)

// ReplyResult is the outcome of one completion call, delivered on the
// controller's reply channel and fed back through HandleReply by the
// owning loop.
type ReplyResult struct {
	RequestID string
	SessionID string
	Reply     string
	Err       error
}

type pendingRequest struct {
	requestID string
	sessionID string
}

// Controller is the interactive use-case layer: it owns the active
// session, drives repository mutations from UI events, and talks to the
// remote completion provider. All methods must be called from a single
// goroutine; the only concurrency is the one outstanding provider call,
// which reports back through Replies.
type Controller struct {
	repo     *Repository
	provider ai.Provider
	userID   string
	window   int

	state     State
	active    *Session
	summaries []Summary
	pending   *pendingRequest
	replies   chan ReplyResult
	notify    func(text string)
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithNotifyFunc installs the sink for user-visible notices. Notices are
// transient UI feedback and are never persisted as messages.
func WithNotifyFunc(f func(text string)) ControllerOption {
	return func(c *Controller) { c.notify = f }
}

// WithContextWindow bounds how many recent messages are sent to the
// completion provider.
func WithContextWindow(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.window = n
		}
	}
}

// NewController wires a controller for one signed-in user. An empty user
// ID is rejected: without an identity there is no persistence namespace.
func NewController(repo *Repository, provider ai.Provider, userID string, opts ...ControllerOption) (*Controller, error) {
	if userID == "" {
		return nil, errors.New("chat: user id is required")
	}
	c := &Controller{
		repo:     repo,
		provider: provider,
		userID:   userID,
		window:   20,
		replies:  make(chan ReplyResult, 4),
		notify:   func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start loads the user's sessions, synthesizing the first one if none
// exist, and designates the most recently active one.
func (c *Controller) Start(ctx context.Context) error {
	sess, summaries, err := c.repo.EnsureInitialized(ctx, c.userID)
	if err != nil {
		if !errors.Is(err, ErrPartialPersistence) {
			return err
		}
		c.notify(NoticePersistence)
		if repairErr := c.repo.RepairIndex(ctx, c.userID, sess); repairErr == nil {
			c.refreshSummaries(ctx)
		}
	}
	c.active = sess
	if c.summaries == nil {
		c.summaries = summaries
	}
	c.state = StateIdle
	return nil
}

func (c *Controller) State() State { return c.state }

// Active returns the session UI events apply to.
func (c *Controller) Active() *Session { return c.active }

// Summaries returns the session list in display order.
func (c *Controller) Summaries() []Summary { return c.summaries }

// Replies delivers completion outcomes. The owning loop must drain it and
// pass each result to HandleReply.
func (c *Controller) Replies() <-chan ReplyResult { return c.replies }

// SendMessage appends the user's message optimistically and dispatches the
// completion call. Rejected outside Idle: a second send while one is
// outstanding would reorder replies against interleaved input.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if c.state != StateIdle {
		return ErrBusy
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if c.active == nil {
		return fmt.Errorf("chat: no active session")
	}

	sess, err := c.repo.AppendMessage(ctx, c.userID, c.active.SessionID, AuthorUser, text)
	if err != nil {
		if !errors.Is(err, ErrPartialPersistence) {
			c.notify(NoticePersistence)
			return err
		}
		c.notify(NoticePersistence)
		_ = c.repo.RepairIndex(ctx, c.userID, sess)
	}
	c.active = sess
	c.refreshSummaries(ctx)

	req := &pendingRequest{requestID: uuid.NewString(), sessionID: sess.SessionID}
	c.pending = req
	c.state = StateAwaitingReply

	history := providerHistory(sess, c.window)
	go func() {
		reply, err := c.provider.Chat(ctx, history)
		c.replies <- ReplyResult{
			RequestID: req.requestID,
			SessionID: req.sessionID,
			Reply:     reply,
			Err:       err,
		}
	}()
	return nil
}

// HandleReply applies one completion outcome. Results from abandoned or
// superseded requests are discarded without touching any session.
func (c *Controller) HandleReply(ctx context.Context, res ReplyResult) error {
	if c.pending == nil || res.RequestID != c.pending.requestID {
		return nil
	}
	c.pending = nil

	if res.Err != nil {
		c.state = StateFailed
		c.notify(NoticeReplyFailed)
		return nil
	}
	if c.active == nil || c.active.SessionID != res.SessionID {
		c.state = StateIdle
		return nil
	}

	sess, err := c.repo.AppendMessage(ctx, c.userID, res.SessionID, AuthorAssistant, res.Reply)
	if err != nil {
		if !errors.Is(err, ErrPartialPersistence) {
			c.notify(NoticePersistence)
			c.state = StateIdle
			return err
		}
		c.notify(NoticePersistence)
		_ = c.repo.RepairIndex(ctx, c.userID, sess)
	}
	c.active = sess
	c.refreshSummaries(ctx)
	c.state = StateIdle
	return nil
}

// Acknowledge clears a remote failure.
func (c *Controller) Acknowledge() {
	if c.state == StateFailed {
		c.state = StateIdle
	}
}

// NewSession creates and activates a fresh session. Only accepted when
// Idle.
func (c *Controller) NewSession(ctx context.Context) error {
	if c.state != StateIdle {
		return ErrBusy
	}
	sess, err := c.repo.CreateSession(ctx, c.userID)
	if err != nil {
		if !errors.Is(err, ErrPartialPersistence) {
			c.notify(NoticePersistence)
			return err
		}
		c.notify(NoticePersistence)
		_ = c.repo.RepairIndex(ctx, c.userID, sess)
	}
	c.active = sess
	c.refreshSummaries(ctx)
	return nil
}

// SwitchSession activates another session. Switching while a reply is
// outstanding abandons the request: its result is discarded on arrival and
// is never appended to the session it was started on. On failure the
// active session and state are left unchanged.
func (c *Controller) SwitchSession(ctx context.Context, sessionID string) error {
	if c.state == StateFailed {
		return ErrBusy
	}
	if c.active != nil && c.active.SessionID == sessionID {
		return nil
	}
	sess, err := c.repo.SelectSession(ctx, c.userID, sessionID)
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			// The repository already dropped the dangling entry.
			c.refreshSummaries(ctx)
		}
		if errors.Is(err, ErrStorageFailure) || errors.Is(err, ErrCorruptRecord) {
			c.notify(NoticePersistence)
		}
		return err
	}
	if c.state == StateAwaitingReply {
		c.pending = nil
		c.state = StateIdle
	}
	c.active = sess
	c.refreshSummaries(ctx)
	return nil
}

// DeleteSession removes a session. Only accepted when Idle. Deleting the
// active session re-initializes so the user always has one session.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	if c.state != StateIdle {
		return ErrBusy
	}
	wasActive := c.active != nil && c.active.SessionID == sessionID
	if err := c.repo.DeleteSession(ctx, c.userID, sessionID); err != nil {
		if !errors.Is(err, ErrPartialPersistence) {
			c.notify(NoticePersistence)
			return err
		}
		c.notify(NoticePersistence)
		_ = c.repo.RepairIndex(ctx, c.userID)
	}
	if wasActive {
		sess, summaries, err := c.repo.EnsureInitialized(ctx, c.userID)
		if err != nil && !errors.Is(err, ErrPartialPersistence) {
			return err
		}
		c.active = sess
		c.summaries = summaries
		return nil
	}
	c.refreshSummaries(ctx)
	return nil
}

func (c *Controller) refreshSummaries(ctx context.Context) {
	if summaries, err := c.repo.ListSessions(ctx, c.userID); err == nil {
		c.summaries = summaries
	}
}

// providerHistory maps the tail of the session onto provider messages.
func providerHistory(sess *Session, window int) []ai.Message {
	msgs := sess.Messages
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: string(m.Author), Content: m.Body})
	}
	return out
}
