package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

const defaultWidth = 80

// Markdown renders agent text. *glamour.TermRenderer satisfies it.
type Markdown interface {
	Render(in string) (string, error)
}

var (
	userBubbleStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	agentBubbleStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	fallbackLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")).
				Bold(true)

	attachmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

// NewMarkdown builds the glamour renderer used for agent bubbles. NO_COLOR
// selects the plain style.
func NewMarkdown(wrap int) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if os.Getenv("NO_COLOR") != "" {
		opts = append(opts, glamour.WithStylePath("notty"))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	return glamour.NewTermRenderer(opts...)
}

// RenderBubble draws one message for a terminal of the given width. User
// text is shown verbatim and pushed right. Agent text goes through md,
// falling back to plain text when md is nil or fails.
func RenderBubble(msg domain.Message, width int, md Markdown) string {
	if width <= 0 {
		width = defaultWidth
	}
	// Two border columns and two padding columns.
	inner := width*3/4 - 4
	if inner < 10 {
		inner = 10
	}

	var lines []string
	align := lipgloss.Left
	style := agentBubbleStyle

	switch msg.Role {
	case domain.RoleUser:
		align = lipgloss.Right
		style = userBubbleStyle
		if msg.Text != "" {
			lines = append(lines, msg.Text)
		}
	default:
		if msg.AgentLabel != "" {
			ls := labelStyle
			if msg.AgentLabel == domain.FallbackAgent {
				ls = fallbackLabelStyle
			}
			lines = append(lines, ls.Render(msg.AgentLabel))
		}
		if msg.Text != "" {
			lines = append(lines, renderAgentText(msg.Text, md))
		}
	}

	if msg.Attachment != nil {
		lines = append(lines, attachmentStyle.Render(AttachmentLine(msg.Attachment)))
	}

	content := strings.Join(lines, "\n")
	if lipgloss.Width(content) > inner {
		style = style.Width(inner + 2)
	}

	return lipgloss.PlaceHorizontal(width, align, style.Render(content))
}

// AttachmentLine is the preview shown for an attached image.
func AttachmentLine(att *domain.Attachment) string {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "unknown"
	}
	return fmt.Sprintf("[image: %s, %s, %s]", att.Name, contentType, humanize.Bytes(uint64(att.Size())))
}

func renderAgentText(text string, md Markdown) string {
	if md == nil {
		return text
	}
	rendered, err := md.Render(text)
	if err != nil {
		return text
	}
	return trimRendered(rendered)
}

// trimRendered drops glamour's blank margins and trailing padding.
func trimRendered(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
