package domain

import "time"

// ExchangeStatus is the outcome of one relayed /chat request.
type ExchangeStatus string

const (
	ExchangeStatusSucceeded ExchangeStatus = "SUCCEEDED"
	ExchangeStatusFailed    ExchangeStatus = "FAILED"
	ExchangeStatusBlocked   ExchangeStatus = "BLOCKED"
)

// Session is a conversation known to ingress.
type Session struct {
	SessionID   string     `json:"session_id"`
	CreatedAt   time.Time  `json:"created_at"`
	LastResetAt *time.Time `json:"last_reset_at,omitempty"`
}

// Exchange records one /chat round trip relayed by ingress.
type Exchange struct {
	ExchangeID     string         `json:"exchange_id"`
	SessionID      string         `json:"session_id"`
	Query          string         `json:"query"`
	AttachmentName string         `json:"attachment_name,omitempty"`
	Agent          string         `json:"agent,omitempty"`
	Response       string         `json:"response,omitempty"`
	Error          string         `json:"error,omitempty"`
	Status         ExchangeStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}
