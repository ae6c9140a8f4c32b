// Package main is the copilot command line client for the ingress server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/config"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/logging"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	url      string
	session  string
	apiKey   string
	logLevel string
	logFile  string

	logger  zerolog.Logger
	logSink io.Closer
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "copilot",
		Short: "Chat with the real estate copilot",
		Long: `copilot talks to the ingress server that fronts the real estate agents.

Run without a subcommand to open the interactive chat. Replies come from the
Property Agent, the Tenancy Agent and their peers; attach photos of property
issues with /attach.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			sink, err := logging.OpenFile(opts.logFile)
			if err != nil {
				return err
			}
			opts.logSink = sink
			opts.logger = logging.NewWithComponent(logging.Config{
				Level:  opts.logLevel,
				Pretty: false,
				Output: sink,
			}, "copilot")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logSink != nil {
				return opts.logSink.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.url, "url", cfg.CopilotURL, "ingress base URL")
	cmd.PersistentFlags().StringVar(&opts.session, "session", "", "session ID (chat generates one when empty)")
	cmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", cfg.APIKey, "API key for the live event stream")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "append logs to this file (discarded when empty)")

	chat := newChatCmd(opts)
	cmd.RunE = chat.RunE
	cmd.AddCommand(
		chat,
		newSendCmd(opts),
		newResetCmd(opts),
		newWatchCmd(opts),
	)

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
