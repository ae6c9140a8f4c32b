// Package protocol defines the WebSocket frames ingress pushes to watchers.
package protocol

import (
	"encoding/json"
	"time"
)

// Frame types from client to ingress
const (
	TypeHello = "hello"
)

// Frame types from ingress to client
const (
	TypeHelloAck        = "hello_ack"
	TypeExchangeStarted = "exchange_started"
	TypeExchangeDone    = "exchange_done"
	TypeExchangeFailed  = "exchange_failed"
	TypeSessionReset    = "session_reset"
	TypeError           = "error"
)

// BaseMessage contains common fields for all frames.
type BaseMessage struct {
	Type       string `json:"type"`
	Ts         int64  `json:"ts"`
	RequestID  string `json:"request_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	ExchangeID string `json:"exchange_id,omitempty"`
}

// NewBase stamps a frame of the given type with the current time.
func NewBase(msgType, sessionID string) BaseMessage {
	return BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		SessionID: sessionID,
	}
}

// HelloMessage is sent by a client to bind the connection to a session.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent by ingress after a successful hello.
type HelloAckMessage struct {
	BaseMessage
}

// ExchangeStartedMessage announces a /chat request being relayed.
type ExchangeStartedMessage struct {
	BaseMessage
	Query          string `json:"query"`
	AttachmentName string `json:"attachment_name,omitempty"`
}

// ExchangeDoneMessage carries the backend's reply.
type ExchangeDoneMessage struct {
	BaseMessage
	Agent    string `json:"agent"`
	Response string `json:"response"`
}

// ExchangeFailedMessage reports a relay that ended in an error.
type ExchangeFailedMessage struct {
	BaseMessage
	Error string `json:"error"`
}

// SessionResetMessage reports that the session's history was cleared.
type SessionResetMessage struct {
	BaseMessage
}

// ErrorMessage is sent by ingress when a frame cannot be handled.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
)

// RawMessage is used for parsing incoming frames before type dispatch.
type RawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"-"`
}

// Envelope decodes any frame ingress sends. Fields not carried by the
// frame's type are left zero.
type Envelope struct {
	BaseMessage
	Query          string `json:"query,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	Agent          string `json:"agent,omitempty"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
}
