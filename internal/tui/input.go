package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// InputBar owns the draft: a single text line plus an optional image.
type InputBar struct {
	text       textinput.Model
	attachment *domain.Attachment
}

// NewInputBar creates a focused input bar.
func NewInputBar() InputBar {
	ti := textinput.New()
	ti.Placeholder = "Ask about listings, leases or repairs..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Width = defaultWidth - 4
	ti.Focus()
	return InputBar{text: ti}
}

// Value returns the raw text typed so far.
func (b InputBar) Value() string {
	return b.text.Value()
}

// SetValue replaces the typed text.
func (b *InputBar) SetValue(s string) {
	b.text.SetValue(s)
}

// Attachment returns the pending attachment, if any.
func (b InputBar) Attachment() *domain.Attachment {
	return b.attachment
}

// Attach sets the pending attachment, replacing any previous one.
func (b *InputBar) Attach(att *domain.Attachment) {
	b.attachment = att
}

// Detach drops the pending attachment.
func (b *InputBar) Detach() {
	b.attachment = nil
}

// Submit returns the draft as typed and clears the bar. A draft that is
// blank after trimming leaves the bar untouched and reports false.
func (b *InputBar) Submit() (domain.Draft, bool) {
	draft := domain.Draft{
		Text:       b.text.Value(),
		Attachment: b.attachment,
	}
	if draft.Empty() {
		return domain.Draft{}, false
	}
	b.text.Reset()
	b.attachment = nil
	return draft, true
}

// ClearText empties the text line but keeps the attachment.
func (b *InputBar) ClearText() {
	b.text.Reset()
}

// Focus enables typing.
func (b *InputBar) Focus() tea.Cmd {
	return b.text.Focus()
}

// Blur disables typing while a request is in flight.
func (b *InputBar) Blur() {
	b.text.Blur()
}

// Focused reports whether the bar accepts keystrokes.
func (b InputBar) Focused() bool {
	return b.text.Focused()
}

// SetWidth resizes the text line.
func (b *InputBar) SetWidth(w int) {
	if w > 4 {
		b.text.Width = w - 4
	}
}

// Update forwards key events to the text line.
func (b InputBar) Update(msg tea.Msg) (InputBar, tea.Cmd) {
	var cmd tea.Cmd
	b.text, cmd = b.text.Update(msg)
	return b, cmd
}

// View renders the attachment chip above the text line.
func (b InputBar) View() string {
	if b.attachment == nil {
		return b.text.View()
	}
	return attachmentStyle.Render("📎 "+AttachmentLine(b.attachment)+"  (/detach to remove)") + "\n" + b.text.View()
}
