package forwarder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/policy"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/protocol"
)

// chatForm is what the forwarder learns about a /chat body without altering it.
type chatForm struct {
	Query           string
	HasFile         bool
	FileName        string
	FileContentType string
	FileSize        int64
}

// handleChat relays the request body to the backend untouched.
func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := sessionFrom(c)
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	body, err := readCapped(c.Request().Body, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxUploadBytes))
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to read request body")
	}

	form, err := inspectChatForm(contentType, body)
	if err != nil {
		// The backend has the final word on malformed bodies.
		s.logger.Debug().Err(err).Str("session_id", sessionID).Msg("could not inspect chat body")
	}

	exchange := &domain.Exchange{
		SessionID:      sessionID,
		Query:          form.Query,
		AttachmentName: form.FileName,
	}

	if s.policy != nil {
		result, err := s.policy.Evaluate(ctx, policy.Input{
			HasFile:      form.HasFile,
			ContentType:  form.FileContentType,
			FileSize:     form.FileSize,
			Filename:     form.FileName,
			QueryLength:  len(form.Query),
			MaxFileBytes: s.cfg.MaxFileBytes,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("upload policy evaluation failed")
			return errorJSON(c, http.StatusInternalServerError, "failed to evaluate upload policy")
		}
		if result.Blocked() {
			exchange.Status = domain.ExchangeStatusBlocked
			exchange.Error = result.Reason
			s.record(c, exchange)
			s.publish(sessionID, protocol.ExchangeFailedMessage{
				BaseMessage: s.exchangeBase(protocol.TypeExchangeFailed, exchange),
				Error:       result.Reason,
			})
			return errorJSON(c, http.StatusBadRequest, result.Reason)
		}
	}

	s.publish(sessionID, protocol.ExchangeStartedMessage{
		BaseMessage:    s.exchangeBase(protocol.TypeExchangeStarted, exchange),
		Query:          form.Query,
		AttachmentName: form.FileName,
	})

	resp, err := s.backend.Chat(ctx, sessionID, contentType, body)
	if err == nil && !json.Valid(resp.Body) {
		err = errors.New("backend returned invalid JSON")
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("chat relay failed")
		exchange.Status = domain.ExchangeStatusFailed
		exchange.Error = err.Error()
		s.record(c, exchange)
		s.publish(sessionID, protocol.ExchangeFailedMessage{
			BaseMessage: s.exchangeBase(protocol.TypeExchangeFailed, exchange),
			Error:       err.Error(),
		})
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	var reply domain.Reply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		s.logger.Debug().Err(err).Str("session_id", sessionID).Msg("backend reply is not a chat reply object")
		reply = domain.Reply{Response: string(resp.Body)}
	}
	exchange.Status = domain.ExchangeStatusSucceeded
	exchange.Agent = reply.Agent
	exchange.Response = reply.Response
	s.record(c, exchange)
	s.publish(sessionID, protocol.ExchangeDoneMessage{
		BaseMessage: s.exchangeBase(protocol.TypeExchangeDone, exchange),
		Agent:       reply.Agent,
		Response:    reply.Response,
	})

	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, resp.Body)
}

// handleReset clears the backend history first; failures are propagated.
func (s *Server) handleReset(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := sessionFrom(c)

	if _, err := s.backend.Reset(ctx, sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("reset relay failed")
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	if err := s.store.ClearSession(ctx, sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear exchange log")
	}
	s.publish(sessionID, protocol.SessionResetMessage{
		BaseMessage: protocol.NewBase(protocol.TypeSessionReset, sessionID),
	})

	return c.JSON(http.StatusOK, domain.ResetAck{Message: domain.ResetMessage})
}

func (s *Server) record(c echo.Context, exchange *domain.Exchange) {
	if err := s.store.RecordExchange(c.Request().Context(), exchange); err != nil {
		s.logger.Warn().Err(err).Str("session_id", exchange.SessionID).Msg("failed to record exchange")
	}
}

func (s *Server) publish(sessionID string, frame interface{}) {
	if err := s.hub.BroadcastJSON(sessionID, frame); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to broadcast frame")
	}
}

// exchangeBase gives the exchange an ID up front so every frame of one
// relay carries the same exchange_id.
func (s *Server) exchangeBase(msgType string, exchange *domain.Exchange) protocol.BaseMessage {
	if exchange.ExchangeID == "" {
		exchange.ExchangeID = newExchangeID()
	}
	base := protocol.NewBase(msgType, exchange.SessionID)
	base.ExchangeID = exchange.ExchangeID
	return base
}

var errBodyTooLarge = errors.New("request body too large")

// readCapped reads at most limit bytes. A non-positive limit disables the cap.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// inspectChatForm walks a multipart body for the query field and the file
// part. Non-multipart bodies yield an empty form.
func inspectChatForm(contentType string, body []byte) (chatForm, error) {
	var form chatForm
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return form, nil
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return form, fmt.Errorf("failed to read multipart body: %w", err)
		}

		switch part.FormName() {
		case "query":
			data, err := io.ReadAll(part)
			if err != nil {
				return form, err
			}
			form.Query = string(data)
		case "file":
			n, err := io.Copy(io.Discard, part)
			if err != nil {
				return form, err
			}
			if part.FileName() == "" && n == 0 {
				// Browsers send an empty file part when nothing was picked.
				break
			}
			form.HasFile = true
			form.FileName = part.FileName()
			form.FileContentType = part.Header.Get("Content-Type")
			form.FileSize = n
		}
		part.Close()
	}
}

func newExchangeID() string {
	return "ex_" + uuid.New().String()
}
