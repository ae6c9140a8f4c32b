// Package store defines the exchange log interface and its SQLite implementation.
package store

import (
	"context"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// Store defines the interface for exchange log persistence.
type Store interface {
	// Session operations
	EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ClearSession(ctx context.Context, sessionID string) error

	// Exchange operations
	RecordExchange(ctx context.Context, exchange *domain.Exchange) error
	ListExchanges(ctx context.Context, sessionID string, limit int) ([]domain.Exchange, error)

	// Lifecycle
	Close() error
}
