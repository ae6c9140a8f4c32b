package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/conversation"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// Update handles messages and updates the model (Bubbletea interface).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.SetWidth(msg.Width)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case replyMsg:
		m.conv.Complete(msg.reply, msg.err)
		m.refresh()
		return m, m.input.Focus()

	case resetDoneMsg:
		m.resetting = false
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setNotice(domain.ResetMessage)
		}
		m.refresh()
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKeyMsg handles keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+d":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+r":
		return m.startReset()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		return m.submit()
	}

	if m.busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit appends the draft and starts the round trip. Empty drafts and
// submits while busy are ignored without a notice.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}

	value := strings.TrimSpace(m.input.Value())
	if strings.HasPrefix(value, "/") {
		return m.handleInlineCommand(value)
	}

	draft, ok := m.input.Submit()
	if !ok {
		return m, nil
	}
	if _, err := m.conv.Begin(draft); err != nil {
		m.setError(err)
		return m, nil
	}

	m.clearNotice()
	m.input.Blur()
	m.refresh()
	return m, tea.Batch(sendCmd(m.ctx, m.conv, draft), m.spinner.Tick)
}

func (m Model) startReset() (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	m.resetting = true
	m.input.Blur()
	m.setNotice("Clearing conversation...")
	return m, tea.Batch(resetCmd(m.ctx, m.conv), m.spinner.Tick)
}

// handleInlineCommand processes inline commands like /attach, /reset and /help.
func (m Model) handleInlineCommand(cmd string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/help":
		m.input.ClearText()
		m.setNotice(helpText)
		return m, nil

	case "/attach":
		m.input.ClearText()
		if arg == "" {
			m.setError(errors.New("usage: /attach <path to image>"))
			return m, nil
		}
		att, err := domain.LoadAttachment(arg)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.input.Attach(att)
		m.clearNotice()
		return m, nil

	case "/detach":
		m.input.ClearText()
		m.input.Detach()
		m.clearNotice()
		return m, nil

	case "/reset":
		m.input.ClearText()
		return m.startReset()

	case "/exit", "/quit":
		m.quitting = true
		return m, tea.Quit

	default:
		m.input.ClearText()
		m.setError(fmt.Errorf("unknown command: %s (try /help)", name))
		return m, nil
	}
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeErr = false
}

func (m *Model) setError(err error) {
	if errors.Is(err, conversation.ErrBusy) {
		err = errors.New("still waiting for the previous reply")
	}
	m.notice = err.Error()
	m.noticeErr = true
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}

const helpText = `Commands:
  /attach <path>  attach an image to the next message
  /detach         drop the pending attachment
  /reset          clear the conversation (also ctrl+r)
  /help           show this help
  /quit           exit (also ctrl+c)
Scroll with pgup/pgdown.`
