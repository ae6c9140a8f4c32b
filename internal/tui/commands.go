package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/conversation"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// sendCmd performs the backend call for a draft already appended by Begin.
func sendCmd(ctx context.Context, conv *conversation.Conversation, draft domain.Draft) tea.Cmd {
	return func() tea.Msg {
		reply, err := conv.Send(ctx, draft)
		return replyMsg{reply: reply, err: err}
	}
}

// resetCmd waits for the backend reset before the list is cleared.
func resetCmd(ctx context.Context, conv *conversation.Conversation) tea.Cmd {
	return func() tea.Msg {
		return resetDoneMsg{err: conv.Reset(ctx)}
	}
}
