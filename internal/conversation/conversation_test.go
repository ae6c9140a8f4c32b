package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

type fakeSender struct {
	mu         sync.Mutex
	reply      *domain.Reply
	sendErr    error
	resetErr   error
	sent       []string
	resetCalls int

	// block, when set, holds SendMessage until closed.
	block chan struct{}
}

func (f *fakeSender) SendMessage(ctx context.Context, text string, att *domain.Attachment) (*domain.Reply, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.reply, f.sendErr
}

func (f *fakeSender) ResetConversation(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return f.resetErr
}

func TestSubmitSuccessScenario(t *testing.T) {
	sender := &fakeSender{reply: &domain.Reply{Response: "Here are 3 two-bedroom units.", Agent: "Tenancy Agent"}}
	conv := New(sender, zerolog.Nop())

	agentMsg, err := conv.Submit(context.Background(), domain.Draft{Text: "Find me a 2BR in Austin"})
	require.NoError(t, err)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "Find me a 2BR in Austin", msgs[0].Text)
	assert.Equal(t, domain.RoleAgent, msgs[1].Role)
	assert.Equal(t, "Here are 3 two-bedroom units.", msgs[1].Text)
	assert.Equal(t, "Tenancy Agent", msgs[1].AgentLabel)
	assert.Equal(t, msgs[1], agentMsg)
	assert.Equal(t, StateIdle, conv.State())
}

func TestSubmitBackendFailureUsesFallback(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("dial tcp: connection refused")}
	conv := New(sender, zerolog.Nop())

	_, err := conv.Submit(context.Background(), domain.Draft{Text: "Is my deposit refundable?"})
	require.NoError(t, err)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Is my deposit refundable?", msgs[0].Text)
	assert.Equal(t, domain.FallbackText, msgs[1].Text)
	assert.Equal(t, domain.FallbackAgent, msgs[1].AgentLabel)
	assert.False(t, conv.Pending())
}

func TestSubmitGrowsListByTwo(t *testing.T) {
	cases := []struct {
		name   string
		sender *fakeSender
		draft  domain.Draft
	}{
		{"text ok", &fakeSender{reply: &domain.Reply{Response: "r", Agent: "a"}}, domain.Draft{Text: "q"}},
		{"text fail", &fakeSender{sendErr: errors.New("boom")}, domain.Draft{Text: "q"}},
		{"attachment only", &fakeSender{reply: &domain.Reply{Response: "mould", Agent: "Property Agent"}}, domain.Draft{Attachment: &domain.Attachment{Name: "wall.png"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conv := New(tc.sender, zerolog.Nop())
			_, _ = conv.Submit(context.Background(), domain.Draft{Text: "warm up"})
			before := conv.Len()

			_, err := conv.Submit(context.Background(), tc.draft)
			require.NoError(t, err)
			assert.Equal(t, before+2, conv.Len())
		})
	}
}

func TestSubmitEmptyDraftIsIgnored(t *testing.T) {
	sender := &fakeSender{reply: &domain.Reply{Response: "r", Agent: "a"}}
	conv := New(sender, zerolog.Nop())

	for _, draft := range []domain.Draft{{}, {Text: "   "}, {Text: "\n\t"}} {
		_, err := conv.Submit(context.Background(), draft)
		assert.ErrorIs(t, err, ErrEmptyDraft)
	}
	assert.Zero(t, conv.Len())
	assert.Empty(t, sender.sent)
}

func TestBeginWhileAwaitingReplyIsRejected(t *testing.T) {
	conv := New(&fakeSender{}, zerolog.Nop())

	_, err := conv.Begin(domain.Draft{Text: "first"})
	require.NoError(t, err)
	assert.True(t, conv.Pending())

	_, err = conv.Begin(domain.Draft{Text: "second"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, conv.Len())

	conv.Complete(&domain.Reply{Response: "done", Agent: "Tenancy Agent"}, nil)
	assert.False(t, conv.Pending())
	assert.Equal(t, 2, conv.Len())
}

func TestConcurrentSubmitsOnlyOneInFlight(t *testing.T) {
	sender := &fakeSender{reply: &domain.Reply{Response: "r", Agent: "a"}, block: make(chan struct{})}
	conv := New(sender, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := conv.Submit(context.Background(), domain.Draft{Text: "first"})
		done <- err
	}()

	require.Eventually(t, conv.Pending, time.Second, 5*time.Millisecond)

	_, err := conv.Submit(context.Background(), domain.Draft{Text: "second"})
	assert.ErrorIs(t, err, ErrBusy)

	close(sender.block)
	require.NoError(t, <-done)
	assert.Equal(t, 2, conv.Len())
}

func TestCompleteWithNilReplyFallsBack(t *testing.T) {
	conv := New(&fakeSender{}, zerolog.Nop())
	_, err := conv.Begin(domain.Draft{Text: "q"})
	require.NoError(t, err)

	msg := conv.Complete(nil, nil)
	assert.Equal(t, domain.FallbackText, msg.Text)
	assert.Equal(t, domain.FallbackAgent, msg.AgentLabel)
}

func TestResetClearsAfterBackendAck(t *testing.T) {
	sender := &fakeSender{reply: &domain.Reply{Response: "r", Agent: "a"}}
	conv := New(sender, zerolog.Nop())
	_, _ = conv.Submit(context.Background(), domain.Draft{Text: "q"})

	require.NoError(t, conv.Reset(context.Background()))
	assert.Zero(t, conv.Len())
	assert.Equal(t, 1, sender.resetCalls)
}

func TestResetClearsEvenWhenBackendFails(t *testing.T) {
	sender := &fakeSender{reply: &domain.Reply{Response: "r", Agent: "a"}, resetErr: errors.New("unreachable")}
	conv := New(sender, zerolog.Nop())
	_, _ = conv.Submit(context.Background(), domain.Draft{Text: "q"})

	require.NoError(t, conv.Reset(context.Background()))
	assert.Zero(t, conv.Len())
}

func TestResetWhileAwaitingReplyIsRejected(t *testing.T) {
	sender := &fakeSender{}
	conv := New(sender, zerolog.Nop())
	_, err := conv.Begin(domain.Draft{Text: "q"})
	require.NoError(t, err)

	assert.ErrorIs(t, conv.Reset(context.Background()), ErrBusy)
	assert.Equal(t, 1, conv.Len())
	assert.Zero(t, sender.resetCalls)
}

func TestBeginDuringResetIsRejected(t *testing.T) {
	sender := &blockingResetSender{release: make(chan struct{}), entered: make(chan struct{})}
	conv := New(sender, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- conv.Reset(context.Background()) }()
	<-sender.entered

	assert.Equal(t, StateResetting, conv.State())
	_, err := conv.Begin(domain.Draft{Text: "too early"})
	assert.ErrorIs(t, err, ErrBusy)

	close(sender.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, conv.State())
	assert.Zero(t, conv.Len())
}

type blockingResetSender struct {
	fakeSender
	entered chan struct{}
	release chan struct{}
}

func (b *blockingResetSender) ResetConversation(ctx context.Context) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestMessagesReturnsCopy(t *testing.T) {
	conv := New(&fakeSender{reply: &domain.Reply{Response: "r", Agent: "a"}}, zerolog.Nop())
	_, _ = conv.Submit(context.Background(), domain.Draft{Text: "q"})

	msgs := conv.Messages()
	msgs[0].Text = "mutated"
	assert.Equal(t, "q", conv.Messages()[0].Text)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_reply", StateAwaitingReply.String())
	assert.Equal(t, "resetting", StateResetting.String())
}
