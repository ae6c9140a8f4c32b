// Package domain defines the core domain models shared by ingress and the copilot CLI.
package domain

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Fallback content appended when the backend round trip fails.
const (
	FallbackText  = "Something went wrong."
	FallbackAgent = "System"
)

// SessionHeader carries the conversation identifier on every hop.
const SessionHeader = "X-Session-ID"

// DefaultSessionID is used by ingress when a caller omits the session header.
const DefaultSessionID = "default"

// Message is one entry of a conversation. It is never mutated after being appended.
type Message struct {
	Role       Role        `json:"role"`
	Text       string      `json:"text"`
	AgentLabel string      `json:"agent,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Draft is the transient input collected by the input bar.
type Draft struct {
	Text       string
	Attachment *Attachment
}

// Empty reports whether submitting the draft should be ignored.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == "" && d.Attachment == nil
}

// Reply is the success body returned by POST /chat.
type Reply struct {
	Response string `json:"response"`
	Agent    string `json:"agent"`
}

// ErrorEnvelope is the uniform failure body returned by ingress.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// ResetAck is the success body returned by POST /reset.
type ResetAck struct {
	Message string `json:"message"`
}

// ResetMessage is the acknowledgement text for a successful reset.
const ResetMessage = "Conversation history cleared."
