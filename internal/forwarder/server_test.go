package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/backend"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/config"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/hub"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/policy"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/protocol"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/store"
)

const testMaxFileBytes = 1024

type testEnv struct {
	server *Server
	store  *store.SQLiteStore
	hub    *hub.Hub
}

func newTestEnv(t *testing.T, backendURL string, maxUpload int64) *testEnv {
	t.Helper()
	cfg := &config.Config{
		BackendURL:     backendURL,
		MaxUploadBytes: maxUpload,
		MaxFileBytes:   testMaxFileBytes,
		PingInterval:   time.Second,
		WriteTimeout:   time.Second,
		ReadTimeout:    5 * time.Second,
		MaxMessageSize: 65536,
	}

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	pe, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	h := hub.NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	srv := NewServer(cfg, backend.NewClient(backendURL, 0), st, pe, h, zerolog.Nop())
	return &testEnv{server: srv, store: st, hub: h}
}

// recordingBackend captures what the forwarder relays.
type recordingBackend struct {
	mu          sync.Mutex
	calls       int
	path        string
	body        []byte
	contentType string
	sessionID   string
}

func (b *recordingBackend) handler(status int, response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.calls++
		b.path = r.URL.Path
		b.body = body
		b.contentType = r.Header.Get("Content-Type")
		b.sessionID = r.Header.Get(domain.SessionHeader)
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}
}

func chatBody(t *testing.T, query, filename, fileType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("query", query))
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", fileType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func postChat(env *testEnv, body []byte, contentType, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	if sessionID != "" {
		req.Header.Set(domain.SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatRelaysBodyByteForByte(t *testing.T) {
	rb := &recordingBackend{}
	reply := `{"response":"That looks like water damage.","agent":"Property Agent"}`
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, reply))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	body, contentType := chatBody(t, "What is this stain?", "ceiling.png", "image/png", []byte("\x89PNG\r\n\x1a\nrest"))
	rec := postChat(env, body, contentType, "sess-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, reply, rec.Body.String())
	assert.Equal(t, "/chat", rb.path)
	assert.Equal(t, body, rb.body)
	assert.Equal(t, contentType, rb.contentType)
	assert.Equal(t, "sess-1", rb.sessionID)

	exchanges, err := env.store.ListExchanges(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, domain.ExchangeStatusSucceeded, exchanges[0].Status)
	assert.Equal(t, "What is this stain?", exchanges[0].Query)
	assert.Equal(t, "ceiling.png", exchanges[0].AttachmentName)
	assert.Equal(t, "Property Agent", exchanges[0].Agent)
}

func TestChatDefaultsSessionHeader(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{"response":"ok","agent":"Tenancy Agent"}`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	body, contentType := chatBody(t, "hello", "", "", nil)
	rec := postChat(env, body, contentType, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultSessionID, rb.sessionID)
}

func TestChatBackendFailures(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		response string
		want     string
	}{
		{"fastapi detail", http.StatusInternalServerError, `{"detail":"agent crashed"}`, "backend returned status 500: agent crashed"},
		{"bare status", http.StatusBadGateway, ``, "backend returned status 502"},
		{"client error", http.StatusUnprocessableEntity, `{"detail":[{"loc":["query"]}]}`, `backend returned status 422: [{"loc":["query"]}]`},
		{"non-json success", http.StatusOK, `<html>hi</html>`, "backend returned invalid JSON"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rb := &recordingBackend{}
			backendSrv := httptest.NewServer(rb.handler(tc.status, tc.response))
			defer backendSrv.Close()
			env := newTestEnv(t, backendSrv.URL, 1<<20)

			body, contentType := chatBody(t, "hi", "", "", nil)
			rec := postChat(env, body, contentType, "s")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var envelope domain.ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tc.want, envelope.Error)

			exchanges, _ := env.store.ListExchanges(context.Background(), "s", 10)
			require.Len(t, exchanges, 1)
			assert.Equal(t, domain.ExchangeStatusFailed, exchanges[0].Status)
		})
	}
}

func TestChatRecordsRawBodyForNonObjectReply(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `["two listings"]`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	body, contentType := chatBody(t, "hi", "", "", nil)
	rec := postChat(env, body, contentType, "s")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `["two listings"]`, rec.Body.String())

	exchanges, err := env.store.ListExchanges(context.Background(), "s", 10)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, domain.ExchangeStatusSucceeded, exchanges[0].Status)
	assert.Empty(t, exchanges[0].Agent)
	assert.Equal(t, `["two listings"]`, exchanges[0].Response)
}

func TestChatBackendUnreachable(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := backendSrv.URL
	backendSrv.Close()
	env := newTestEnv(t, url, 1<<20)

	body, contentType := chatBody(t, "hi", "", "", nil)
	rec := postChat(env, body, contentType, "s")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to call backend")
}

func TestChatPolicyBlocksNonImage(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{}`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	body, contentType := chatBody(t, "read my lease", "lease.pdf", "application/pdf", []byte("%PDF-1.7"))
	rec := postChat(env, body, contentType, "s")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "only image attachments are supported")
	assert.Zero(t, rb.calls)

	exchanges, _ := env.store.ListExchanges(context.Background(), "s", 10)
	require.Len(t, exchanges, 1)
	assert.Equal(t, domain.ExchangeStatusBlocked, exchanges[0].Status)
}

func TestChatPolicyBlocksOversizedImage(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{}`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	body, contentType := chatBody(t, "is this damp?", "wall.png", "image/png", make([]byte, 2*testMaxFileBytes))
	rec := postChat(env, body, contentType, "s")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "attachment exceeds 1024 bytes")
	assert.Zero(t, rb.calls)
}

func TestChatAcceptsUpperCaseImageType(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{"response":"Looks like mould.","agent":"Issue Agent"}`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	body, contentType := chatBody(t, "what is this?", "wall.png", "IMAGE/PNG", []byte("\x89PNG"))
	rec := postChat(env, body, contentType, "s")

	assert.Equal(t, http.StatusOK, rec.Code)
	rb.mu.Lock()
	assert.Equal(t, 1, rb.calls)
	rb.mu.Unlock()
}

func TestChatBodyTooLarge(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{}`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 64)

	body, contentType := chatBody(t, strings.Repeat("x", 200), "", "", nil)
	rec := postChat(env, body, contentType, "s")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, rb.calls)
}

func TestResetPropagatesOutcome(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		rb := &recordingBackend{}
		backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{"message":"Conversation history cleared."}`))
		defer backendSrv.Close()
		env := newTestEnv(t, backendSrv.URL, 1<<20)
		ctx := context.Background()
		require.NoError(t, env.store.RecordExchange(ctx, &domain.Exchange{SessionID: "s", Query: "q", Status: domain.ExchangeStatusSucceeded}))

		req := httptest.NewRequest(http.MethodPost, "/reset", nil)
		req.Header.Set(domain.SessionHeader, "s")
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Conversation history cleared."}`, rec.Body.String())
		assert.Equal(t, "/reset", rb.path)
		assert.Empty(t, rb.body)
		assert.Equal(t, "s", rb.sessionID)

		exchanges, _ := env.store.ListExchanges(ctx, "s", 10)
		assert.Empty(t, exchanges)
	})

	t.Run("failure", func(t *testing.T) {
		rb := &recordingBackend{}
		backendSrv := httptest.NewServer(rb.handler(http.StatusServiceUnavailable, `{"detail":"redis down"}`))
		defer backendSrv.Close()
		env := newTestEnv(t, backendSrv.URL, 1<<20)

		req := httptest.NewRequest(http.MethodPost, "/reset", nil)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"backend returned status 503: redis down"}`, rec.Body.String())
	})
}

func TestListExchanges(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid", 1<<20)
	ctx := context.Background()
	for _, q := range []string{"one", "two"} {
		require.NoError(t, env.store.RecordExchange(ctx, &domain.Exchange{SessionID: "s1", Query: q, Status: domain.ExchangeStatusSucceeded}))
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/exchanges?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("s1")

	require.NoError(t, env.server.handleListExchanges(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ExchangesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.Exchanges, 1)
}

func TestListExchangesInvalidLimit(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid", 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/exchanges?limit=abc", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "http://backend:8000", 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "http://backend:8000", body["backend_url"])
}

func TestInspectChatForm(t *testing.T) {
	body, contentType := chatBody(t, "Find me a 2BR", "wall.jpg", "image/jpeg", []byte("12345"))
	form, err := inspectChatForm(contentType, body)
	require.NoError(t, err)
	assert.Equal(t, "Find me a 2BR", form.Query)
	assert.True(t, form.HasFile)
	assert.Equal(t, "wall.jpg", form.FileName)
	assert.Equal(t, "image/jpeg", form.FileContentType)
	assert.EqualValues(t, 5, form.FileSize)

	form, err = inspectChatForm("application/json", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, form.HasFile)
}

func TestWatcherReceivesExchangeFrames(t *testing.T) {
	rb := &recordingBackend{}
	backendSrv := httptest.NewServer(rb.handler(http.StatusOK, `{"response":"Here are three listings.","agent":"Tenancy Agent"}`))
	defer backendSrv.Close()
	env := newTestEnv(t, backendSrv.URL, 1<<20)

	ingress := httptest.NewServer(env.server.Handler())
	defer ingress.Close()

	wsURL := "ws" + strings.TrimPrefix(ingress.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	hello := protocol.HelloMessage{BaseMessage: protocol.NewBase(protocol.TypeHello, "watch-me")}
	require.NoError(t, ws.WriteJSON(hello))

	readFrame := func() protocol.Envelope {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame protocol.Envelope
		require.NoError(t, ws.ReadJSON(&frame))
		return frame
	}

	ack := readFrame()
	assert.Equal(t, protocol.TypeHelloAck, ack.Type)
	assert.Equal(t, "watch-me", ack.SessionID)

	body, contentType := chatBody(t, "Find me a 2BR in Austin", "", "", nil)
	rec := postChat(env, body, contentType, "watch-me")
	require.Equal(t, http.StatusOK, rec.Code)

	started := readFrame()
	assert.Equal(t, protocol.TypeExchangeStarted, started.Type)
	assert.Equal(t, "Find me a 2BR in Austin", started.Query)

	done := readFrame()
	assert.Equal(t, protocol.TypeExchangeDone, done.Type)
	assert.Equal(t, "Tenancy Agent", done.Agent)
	assert.Equal(t, started.ExchangeID, done.ExchangeID)
}

func TestWatcherUnknownFrame(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid", 1<<20)
	ingress := httptest.NewServer(env.server.Handler())
	defer ingress.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ingress.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "agent_invoke"}))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame protocol.Envelope
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, protocol.TypeError, frame.Type)
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, frame.Code)
}
