package forwarder

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/hub"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/protocol"
)

// HandleWebSocket upgrades a watcher connection. Frames only flow after a hello.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to upgrade websocket")
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("websocket read failed")
			}
			return
		}
		s.handleFrame(conn, message)
	}
}

func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches client frames. Watchers only ever send hello.
func (s *Server) handleFrame(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	default:
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	s.hub.BindSession(conn, sessionID)

	ack := protocol.HelloAckMessage{BaseMessage: protocol.NewBase(protocol.TypeHelloAck, sessionID)}
	ack.RequestID = msg.RequestID
	if err := s.hub.SendJSONToConnection(conn, ack); err != nil {
		s.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("failed to send hello_ack")
		return
	}

	s.logger.Info().Str("session_id", sessionID).Str("conn_id", conn.ID).Msg("watcher attached")
}

func (s *Server) sendError(conn *hub.Connection, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.NewBase(protocol.TypeError, s.hub.SessionOf(conn)),
		Code:        code,
		Message:     message,
	}
	if err := s.hub.SendJSONToConnection(conn, errMsg); err != nil {
		s.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("failed to send error frame")
	}
}
