// Package apiclient provides the HTTP client the copilot CLI uses to reach ingress.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// NetworkError is returned for transport failures, non-success statuses and
// unreadable bodies. Callers are expected to substitute their own fallback content.
type NetworkError struct {
	Op         string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client talks to the ingress /chat and /reset endpoints on behalf of one session.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the transport default timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new API client.
func NewClient(baseURL, sessionID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		sessionID:  sessionID,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the session this client speaks for.
func (c *Client) SessionID() string {
	return c.sessionID
}

// SendMessage posts the query and optional attachment as multipart form data.
func (c *Client) SendMessage(ctx context.Context, text string, att *domain.Attachment) (*domain.Reply, error) {
	body, contentType, err := encodeChatForm(text, att)
	if err != nil {
		return nil, &NetworkError{Op: "send message", Err: err}
	}

	respBody, err := c.post(ctx, "send message", "/chat", contentType, body)
	if err != nil {
		return nil, err
	}

	var reply domain.Reply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, &NetworkError{Op: "send message", Err: fmt.Errorf("failed to decode reply: %w", err)}
	}
	return &reply, nil
}

// ResetConversation asks ingress to clear the backend's state for this session.
func (c *Client) ResetConversation(ctx context.Context) error {
	_, err := c.post(ctx, "reset conversation", "/reset", "", nil)
	return err
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.sessionID != "" {
		httpReq.Header.Set(domain.SessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope domain.ErrorEnvelope
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != "" {
			return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(envelope.Error)}
		}
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	return respBody, nil
}

// encodeChatForm builds the multipart body with a "query" field and an optional "file" part.
func encodeChatForm(text string, att *domain.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("query", text); err != nil {
		return nil, "", fmt.Errorf("failed to write query field: %w", err)
	}

	if att != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, att.Name))
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
