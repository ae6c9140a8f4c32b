// Package forwarder serves the public ingress routes and relays them to the
// agent backend.
package forwarder

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/backend"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/config"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/hub"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/policy"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/store"
)

// Server is the ingress HTTP server.
type Server struct {
	cfg      *config.Config
	echo     *echo.Echo
	backend  *backend.Client
	store    store.Store
	policy   *policy.Engine
	hub      *hub.Hub
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer wires the routes. A nil policy engine admits every upload.
func NewServer(cfg *config.Config, bc *backend.Client, st store.Store, pe *policy.Engine, h *hub.Hub, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:     cfg,
		echo:    e,
		backend: bc,
		store:   st,
		policy:  pe,
		hub:     h,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = s.logger.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORS())

	e.POST("/chat", s.handleChat)
	e.POST("/reset", s.handleReset)
	e.GET("/health", s.handleHealth)
	e.GET("/sessions/:session_id/exchanges", s.handleListExchanges)
	e.GET("/ws", s.HandleWebSocket)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"backend_url": s.backend.BaseURL(),
		"connections": s.hub.ConnectionCount(),
		"sessions":    s.hub.SessionCount(),
	})
}

// ExchangesResponse is the body of GET /sessions/:session_id/exchanges.
type ExchangesResponse struct {
	SessionID string            `json:"session_id"`
	Exchanges []domain.Exchange `json:"exchanges"`
}

func (s *Server) handleListExchanges(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return errorJSON(c, http.StatusBadRequest, "session_id is required")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errorJSON(c, http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	exchanges, err := s.store.ListExchanges(c.Request().Context(), sessionID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to list exchanges")
		return errorJSON(c, http.StatusInternalServerError, "failed to list exchanges")
	}

	return c.JSON(http.StatusOK, ExchangesResponse{SessionID: sessionID, Exchanges: exchanges})
}

func sessionFrom(c echo.Context) string {
	if sid := c.Request().Header.Get(domain.SessionHeader); sid != "" {
		return sid
	}
	return domain.DefaultSessionID
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, domain.ErrorEnvelope{Error: message})
}
