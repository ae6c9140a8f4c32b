// Package conversation holds the ordered message list and the pending-reply
// state of a single chat session.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

var (
	// ErrEmptyDraft is returned when a submit carries neither text nor an attachment.
	ErrEmptyDraft = errors.New("draft is empty")
	// ErrBusy is returned while a reply or a reset is still pending.
	ErrBusy = errors.New("conversation is busy")
)

// Sender is the backend-facing side of a conversation.
type Sender interface {
	SendMessage(ctx context.Context, text string, att *domain.Attachment) (*domain.Reply, error)
	ResetConversation(ctx context.Context) error
}

// State is the conversation's position in the send cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingReply
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Conversation is safe for concurrent use; at most one send is in flight.
type Conversation struct {
	mu       sync.Mutex
	messages []domain.Message
	state    State

	sender Sender
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an empty conversation.
func New(sender Sender, logger zerolog.Logger) *Conversation {
	return &Conversation{
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Begin appends the user message and moves to AwaitingReply.
func (c *Conversation) Begin(draft domain.Draft) (domain.Message, error) {
	if draft.Empty() {
		return domain.Message{}, ErrEmptyDraft
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return domain.Message{}, ErrBusy
	}

	msg := domain.Message{
		Role:       domain.RoleUser,
		Text:       draft.Text,
		Attachment: draft.Attachment,
		CreatedAt:  c.now(),
	}
	c.messages = append(c.messages, msg)
	c.state = StateAwaitingReply
	return msg, nil
}

// Complete appends the agent reply, or the fallback message when err is
// non-nil, and moves back to Idle.
func (c *Conversation) Complete(reply *domain.Reply, err error) domain.Message {
	msg := domain.Message{
		Role:      domain.RoleAgent,
		CreatedAt: c.now(),
	}
	if err != nil || reply == nil {
		if err != nil {
			c.logger.Warn().Err(err).Msg("send failed, showing fallback reply")
		}
		msg.Text = domain.FallbackText
		msg.AgentLabel = domain.FallbackAgent
	} else {
		msg.Text = reply.Response
		msg.AgentLabel = reply.Agent
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	c.state = StateIdle
	return msg
}

// Submit runs a full round trip. Backend failures are absorbed into the
// fallback message; only ErrEmptyDraft and ErrBusy are returned.
func (c *Conversation) Submit(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	if _, err := c.Begin(draft); err != nil {
		return domain.Message{}, err
	}
	reply, err := c.sender.SendMessage(ctx, draft.Text, draft.Attachment)
	return c.Complete(reply, err), nil
}

// Send performs only the backend call for a draft already passed to Begin.
func (c *Conversation) Send(ctx context.Context, draft domain.Draft) (*domain.Reply, error) {
	return c.sender.SendMessage(ctx, draft.Text, draft.Attachment)
}

// Reset waits for the backend reset to settle, then clears the list. A
// backend failure is logged and does not keep the local list alive.
// Submits are refused with ErrBusy until the reset finishes.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateResetting
	c.mu.Unlock()

	if err := c.sender.ResetConversation(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("backend reset failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.state = StateIdle
	return nil
}

// Messages returns a copy of the message list.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Pending reports whether a reply is awaited.
func (c *Conversation) Pending() bool {
	return c.State() == StateAwaitingReply
}

// State returns the current state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
