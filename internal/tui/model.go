// Package tui is the interactive terminal front end of the copilot.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/conversation"
)

// Rows taken by everything except the message viewport.
const chromeHeight = 7

// Options configures a Model.
type Options struct {
	SessionID string
	BaseURL   string
	// Renderer formats agent text. Nil builds a glamour renderer.
	Renderer Markdown
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx       context.Context
	conv      *conversation.Conversation
	sessionID string
	baseURL   string

	input    InputBar
	viewport viewport.Model
	spinner  spinner.Model
	renderer Markdown

	// resetting is set as soon as a reset is requested, before the
	// conversation itself switches state.
	resetting bool
	notice    string
	noticeErr bool

	width    int
	height   int
	quitting bool
}

// NewModel creates the chat screen for conv.
func NewModel(ctx context.Context, conv *conversation.Conversation, opts Options) (Model, error) {
	renderer := opts.Renderer
	if renderer == nil {
		md, err := NewMarkdown(defaultWidth*3/4 - 4)
		if err != nil {
			return Model{}, err
		}
		renderer = md
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		conv:      conv,
		sessionID: opts.SessionID,
		baseURL:   opts.BaseURL,
		input:     NewInputBar(),
		viewport:  viewport.New(defaultWidth, 24-chromeHeight),
		spinner:   s,
		renderer:  renderer,
		width:     defaultWidth,
		height:    24,
	}
	m.refresh()
	return m, nil
}

// Init initializes the model (Bubbletea interface).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// busy reports whether a send or a reset is outstanding.
func (m Model) busy() bool {
	return m.resetting || m.conv.State() != conversation.StateIdle
}

// refresh re-renders the transcript and keeps the newest message in view.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}
