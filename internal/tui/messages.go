package tui

import "github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"

// replyMsg carries the outcome of a send round trip.
type replyMsg struct {
	reply *domain.Reply
	err   error
}

// resetDoneMsg indicates the backend reset settled and the list was cleared.
type resetDoneMsg struct {
	err error
}
