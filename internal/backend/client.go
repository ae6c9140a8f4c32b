// Package backend provides the HTTP client ingress uses to reach the agent backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// Client relays requests to the agent backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client. A zero timeout keeps the
// transport defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a successful backend response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// errorBody covers both our own envelope and FastAPI's HTTPException shape.
type errorBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail"`
}

// Chat calls POST /chat, relaying body unchanged with its original content type.
func (c *Client) Chat(ctx context.Context, sessionID, contentType string, body []byte) (*Response, error) {
	return c.post(ctx, "/chat", sessionID, contentType, body)
}

// Reset calls POST /reset with an empty body.
func (c *Client) Reset(ctx context.Context, sessionID string) (*Response, error) {
	return c.post(ctx, "/reset", sessionID, "", nil)
}

func (c *Client) post(ctx context.Context, path, sessionID, contentType string, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if sessionID != "" {
		httpReq.Header.Set(domain.SessionHeader, sessionID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: extractDetail(respBody)}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

func extractDetail(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		return ""
	}
	if eb.Error != "" {
		return eb.Error
	}
	switch d := eb.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}
