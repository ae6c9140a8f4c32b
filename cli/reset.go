package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/apiclient"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the conversation history of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := sessionOrDefault(opts.session)
			client := apiclient.NewClient(opts.url, sessionID)
			if err := client.ResetConversation(cmd.Context()); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (session %s)\n", domain.ResetMessage, sessionID)
			return nil
		},
	}
}
