package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/protocol"
)

// watchClient follows the live event stream of one session.
type watchClient struct {
	conn      *websocket.Conn
	sessionID string
}

// dialWatch connects to the /ws endpoint of the ingress at baseURL.
func dialWatch(ctx context.Context, baseURL string) (*watchClient, error) {
	addr, err := wsURL(baseURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &watchClient{conn: conn}, nil
}

// wsURL maps http(s)://host/prefix to ws(s)://host/prefix/ws.
func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Close closes the client connection.
func (c *watchClient) Close() error {
	return c.conn.Close()
}

// SendHello binds the connection to sessionID and waits for hello_ack.
func (c *watchClient) SendHello(sessionID, apiKey string) error {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.NewBase(protocol.TypeHello, sessionID),
		APIKey:      apiKey,
		ClientMeta: map[string]string{
			"client": "copilot-cli",
		},
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var frame protocol.Envelope
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if frame.Type == protocol.TypeError {
		return fmt.Errorf("hello failed: %s - %s", frame.Code, frame.Message)
	}
	if frame.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", frame.Type)
	}

	c.sessionID = frame.SessionID
	return nil
}

// ReadFrames prints frames to w until the connection closes or ctx is done.
func (c *watchClient) ReadFrames(ctx context.Context, w io.Writer) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var frame protocol.Envelope
		if err := json.Unmarshal(data, &frame); err != nil {
			fmt.Fprintf(w, "? %s\n", data)
			continue
		}
		fmt.Fprintln(w, formatFrame(frame))
	}
}

func formatFrame(f protocol.Envelope) string {
	switch f.Type {
	case protocol.TypeExchangeStarted:
		if f.AttachmentName != "" {
			return fmt.Sprintf("→ %s [image: %s]", f.Query, f.AttachmentName)
		}
		return "→ " + f.Query
	case protocol.TypeExchangeDone:
		return fmt.Sprintf("← %s: %s", f.Agent, f.Response)
	case protocol.TypeExchangeFailed:
		return "✗ " + f.Error
	case protocol.TypeSessionReset:
		return "⟲ conversation reset"
	case protocol.TypeError:
		return fmt.Sprintf("error %s: %s", f.Code, f.Message)
	default:
		return "[" + f.Type + "]"
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow live exchanges of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dialWatch(ctx, opts.url)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.SendHello(sessionOrDefault(opts.session), opts.apiKey); err != nil {
				return err
			}
			opts.logger.Info().Str("session_id", client.sessionID).Msg("watching session")
			fmt.Fprintf(cmd.OutOrStdout(), "Watching session %s (ctrl+c to stop)\n", client.sessionID)

			return client.ReadFrames(ctx, cmd.OutOrStdout())
		},
	}
}
