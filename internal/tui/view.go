package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders the UI (Bubbletea interface).
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(m.header()))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(m.width, 1)))
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	// Typing indicator.
	switch {
	case m.resetting:
		b.WriteString(fmt.Sprintf("%s Clearing conversation...", m.spinner.View()))
	case m.conv.Pending():
		b.WriteString(fmt.Sprintf("%s Copilot is typing...", m.spinner.View()))
	}
	b.WriteString("\n")

	if m.notice != "" {
		if m.noticeErr {
			b.WriteString(errorStyle.Render("✗ " + m.notice))
		} else {
			b.WriteString(hintStyle.Render(m.notice))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())

	if !m.busy() {
		b.WriteString(hintStyle.Render("\n[enter to send, /attach <image>, ctrl+r to reset, /help, ctrl+c to quit]"))
	}

	return b.String()
}

func (m Model) header() string {
	parts := []string{"Real Estate Copilot"}
	if m.sessionID != "" {
		parts = append(parts, "session "+m.sessionID)
	}
	if m.baseURL != "" {
		parts = append(parts, m.baseURL)
	}
	return strings.Join(parts, " | ")
}

// renderConversation renders every message as a bubble.
func (m Model) renderConversation() string {
	msgs := m.conv.Messages()
	if len(msgs) == 0 {
		return hintStyle.Render("Ask about listings, tenancy questions, or attach a photo of a property issue.")
	}

	bubbles := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		bubbles = append(bubbles, RenderBubble(msg, m.viewport.Width, m.renderer))
	}
	return strings.Join(bubbles, "\n")
}
