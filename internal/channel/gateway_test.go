package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

type graphCall struct {
	token string
	body  sendRequest
}

func fakeGraph(t *testing.T, status int, reply string) (*httptest.Server, *[]graphCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []graphCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		var body sendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		calls = append(calls, graphCall{token: r.URL.Query().Get("access_token"), body: body})
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGateway_Send(t *testing.T) {
	srv, calls := fakeGraph(t, http.StatusOK, `{"recipient_id":"u1","message_id":"mid.1"}`)
	g := NewGateway(GatewayConfig{APIBase: srv.URL, Logger: testLogger()})

	err := g.Send(context.Background(), domain.OutboundMessage{TenantID: "p1", RecipientID: "u1", Text: "hello"}, "tok&en")
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	c := (*calls)[0]
	assert.Equal(t, "tok&en", c.token, "token must reach the query intact")
	assert.Equal(t, "u1", c.body.Recipient.ID)
	assert.Equal(t, "hello", c.body.Message.Text)
	assert.Equal(t, "RESPONSE", c.body.MessagingType)
}

func TestGateway_GraphError(t *testing.T) {
	srv, calls := fakeGraph(t, http.StatusBadRequest, `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`)
	g := NewGateway(GatewayConfig{APIBase: srv.URL, Logger: testLogger()})

	err := g.Send(context.Background(), domain.OutboundMessage{RecipientID: "u1", Text: "hi"}, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.Contains(t, err.Error(), "190")
	assert.Len(t, *calls, 1, "failed sends must not be retried")
}

func TestGateway_MissingToken(t *testing.T) {
	g := NewGateway(GatewayConfig{APIBase: "http://127.0.0.1:1", Logger: testLogger()})
	err := g.Send(context.Background(), domain.OutboundMessage{TenantID: "p1", RecipientID: "u1", Text: "hi"}, "")
	assert.Error(t, err)
}

func TestGateway_TransportErrorHidesToken(t *testing.T) {
	g := NewGateway(GatewayConfig{APIBase: "http://127.0.0.1:1", Logger: testLogger()})
	err := g.Send(context.Background(), domain.OutboundMessage{RecipientID: "u1", Text: "hi"}, "secret-page-token")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-page-token")
}

func TestGateway_SplitsLongMessages(t *testing.T) {
	srv, calls := fakeGraph(t, http.StatusOK, `{}`)
	g := NewGateway(GatewayConfig{APIBase: srv.URL, Logger: testLogger()})

	long := strings.Repeat("nhớ mẹ ", 600) // 4200 characters
	require.NoError(t, g.Send(context.Background(), domain.OutboundMessage{RecipientID: "u1", Text: long}, "tok"))
	require.Len(t, *calls, 3)

	var joined string
	for _, c := range *calls {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.body.Message.Text), messengerMaxMsgLen)
		joined += c.body.Message.Text
	}
	assert.Equal(t, long, joined)
}

// --- splitMessage ---

func TestSplitMessage_Short(t *testing.T) {
	assert.Len(t, splitMessage("short message", 100), 1)
}

func TestSplitMessage_Empty(t *testing.T) {
	assert.Len(t, splitMessage("", 100), 1)
}

func TestSplitMessage_PrefersNewline(t *testing.T) {
	msg := strings.Repeat("a", 40) + "\n" + strings.Repeat("b", 40)
	chunks := splitMessage(msg, 50)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 40)+"\n", chunks[0])
}

func TestSplitMessage_NoBreakPoint(t *testing.T) {
	chunks := splitMessage(strings.Repeat("x", 120), 50)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 50)
	assert.Len(t, chunks[2], 20)
}
