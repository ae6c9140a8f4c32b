package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/apiclient"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/conversation"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/tui"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var (
		file  string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send one message and print the reply",
		Example: `  copilot send "Find me a 2BR in Austin"
  copilot send "What is this stain?" --file ceiling.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := domain.Draft{Text: strings.Join(args, " ")}
			if file != "" {
				att, err := domain.LoadAttachment(file)
				if err != nil {
					return err
				}
				draft.Attachment = att
			}

			client := apiclient.NewClient(opts.url, sessionOrDefault(opts.session))
			conv := conversation.New(client, opts.logger)

			if _, err := conv.Submit(cmd.Context(), draft); err != nil {
				if errors.Is(err, conversation.ErrEmptyDraft) {
					return fmt.Errorf("nothing to send: give some text or --file")
				}
				return err
			}

			var md tui.Markdown
			if !plain {
				renderer, err := tui.NewMarkdown(56)
				if err != nil {
					return err
				}
				md = renderer
			}
			printMessages(cmd.OutOrStdout(), conv.Messages(), md)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "image to attach")
	cmd.Flags().BoolVar(&plain, "plain", false, "print agent replies without markdown styling")
	return cmd
}

func sessionOrDefault(sessionID string) string {
	if sessionID == "" {
		return domain.DefaultSessionID
	}
	return sessionID
}
