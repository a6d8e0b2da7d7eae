package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
	"github.com/dinhthangx01/facebook-bot-multi/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.InboundEvent
}

func (h *recordingHandler) Process(_ context.Context, ev domain.InboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func newTestMessenger(secret string) (*Messenger, *recordingHandler) {
	h := &recordingHandler{}
	return NewMessenger(MessengerConfig{
		VerifyToken: "123abc",
		AppSecret:   secret,
		MetricsPath: "/metrics",
		Handler:     h,
		Metrics:     metrics.New(),
		Logger:      testLogger(),
	}), h
}

func serve(m *Messenger, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	return rr
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const textDelivery = `{
  "object": "page",
  "entry": [{
    "id": "1111",
    "time": 1700000000000,
    "messaging": [
      {"sender": {"id": "u1"}, "recipient": {"id": "1111"}, "timestamp": 1700000000000,
       "message": {"mid": "m1", "text": "  I want to buy a gift  "}},
      {"sender": {"id": "1111"}, "recipient": {"id": "u1"},
       "message": {"mid": "m2", "text": "echo", "is_echo": true}},
      {"sender": {"id": "u2"}, "recipient": {"id": "1111"},
       "message": {"mid": "m3", "attachments": [{"type": "image"}]}},
      {"sender": {"id": "u3"}, "recipient": {"id": "1111"}, "read": {"watermark": 1}}
    ]
  }, {
    "id": 2222,
    "messaging": [
      {"sender": {"id": "u9"}, "recipient": {"id": "2222"}, "message": {"mid": "m4", "text": "hello"}}
    ]
  }]
}`

// --- Verification ---

func TestVerification_Success(t *testing.T) {
	m, _ := newTestMessenger("")
	rr := serve(m, httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=123abc&hub.challenge=xyz123", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "xyz123", rr.Body.String())
}

func TestVerification_WrongToken(t *testing.T) {
	m, _ := newTestMessenger("")
	for _, q := range []string{
		"hub.mode=subscribe&hub.verify_token=nope&hub.challenge=xyz",
		"hub.mode=unsubscribe&hub.verify_token=123abc&hub.challenge=xyz",
		"",
	} {
		rr := serve(m, httptest.NewRequest("GET", "/webhook?"+q, nil))
		assert.Equal(t, http.StatusForbidden, rr.Code, q)
		assert.Equal(t, verifyFailed, rr.Body.String(), q)
	}
}

// --- Deliveries ---

func TestIncoming_ExtractsTextMessages(t *testing.T) {
	m, h := newTestMessenger("")
	rr := serve(m, httptest.NewRequest("POST", "/webhook", strings.NewReader(textDelivery)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
	require.Len(t, h.events, 2)

	ev := h.events[0]
	assert.Equal(t, "1111", ev.TenantID)
	assert.Equal(t, "u1", ev.SenderID)
	assert.Equal(t, "I want to buy a gift", ev.Text)
	assert.NotEmpty(t, ev.RequestID)
	assert.Equal(t, int64(1700000000000), ev.Timestamp.UnixMilli())
	assert.Equal(t, "2222", h.events[1].TenantID, "numeric page id")
	assert.Equal(t, ev.RequestID, h.events[1].RequestID, "events of one delivery share a request id")
}

func TestIncoming_AlwaysOK(t *testing.T) {
	m, h := newTestMessenger("")
	for name, body := range map[string]string{
		"malformed":    "not json",
		"other object": `{"object":"instagram","entry":[{"id":"1","messaging":[{"sender":{"id":"u"},"message":{"text":"hi"}}]}]}`,
		"empty":        "",
		"no entries":   `{"object":"page"}`,
	} {
		rr := serve(m, httptest.NewRequest("POST", "/webhook", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, rr.Code, name)
		assert.Equal(t, "OK", rr.Body.String(), name)
	}
	assert.Empty(t, h.events)
}

func TestIncoming_BodyTooLarge(t *testing.T) {
	m, h := newTestMessenger("")
	big := `{"object":"page","pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	rr := serve(m, httptest.NewRequest("POST", "/webhook", strings.NewReader(big)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, h.events, "oversized body should be dropped")
}

func TestIncoming_Signature(t *testing.T) {
	m, h := newTestMessenger("app-secret")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(textDelivery))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	assert.Equal(t, http.StatusOK, serve(m, req).Code)
	assert.Empty(t, h.events, "events with a bad signature must be skipped")

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(textDelivery))
	req.Header.Set("X-Hub-Signature-256", sign(textDelivery, "app-secret"))
	serve(m, req)
	assert.Len(t, h.events, 2)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	assert.True(t, verifySignature(body, "s", sign(string(body), "s")))
	assert.False(t, verifySignature(body, "s", ""))
	assert.False(t, verifySignature(body, "s", strings.TrimPrefix(sign(string(body), "s"), "sha256=")))
}

// --- Other routes ---

func TestHome(t *testing.T) {
	m, _ := newTestMessenger("")
	rr := serve(m, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, Banner, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(m, httptest.NewRequest("GET", "/nope", nil)).Code)
}

func TestMetricsRoute(t *testing.T) {
	m, _ := newTestMessenger("")
	serve(m, httptest.NewRequest("POST", "/webhook", strings.NewReader("bad")))

	rr := serve(m, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `heavenbot_messages_dropped_total{reason="malformed"} 1`)
}

func TestMetricsRoute_Disabled(t *testing.T) {
	m := NewMessenger(MessengerConfig{VerifyToken: "t", Handler: &recordingHandler{}, Logger: testLogger()})
	assert.Equal(t, http.StatusNotFound, serve(m, httptest.NewRequest("GET", "/metrics", nil)).Code)
}
