package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/apiclient"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/conversation"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/tui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := opts.session
			if sessionID == "" {
				sessionID = uuid.New().String()
			}

			client := apiclient.NewClient(opts.url, sessionID)
			conv := conversation.New(client, opts.logger)

			model, err := tui.NewModel(cmd.Context(), conv, tui.Options{
				SessionID: sessionID,
				BaseURL:   opts.url,
			})
			if err != nil {
				return fmt.Errorf("failed to create chat screen: %w", err)
			}

			opts.logger.Info().Str("session_id", sessionID).Str("url", opts.url).Msg("chat started")

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("chat session failed: %w", err)
			}
			return nil
		},
	}
}

// printMessages writes a transcript through the bubble renderer.
func printMessages(w io.Writer, msgs []domain.Message, md tui.Markdown) {
	for _, msg := range msgs {
		fmt.Fprintln(w, tui.RenderBubble(msg, 80, md))
	}
}
