package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
	"github.com/dinhthangx01/facebook-bot-multi/internal/metrics"
)

const (
	// Banner is the liveness response of GET /.
	Banner = "✅ HeavenBot Active – Comfort & Sales AI Ready"

	maxBodyBytes = 1 << 20
	verifyFailed = "Verification token mismatch"
)

// EventHandler consumes one inbound message. It must not fail the webhook.
type EventHandler interface {
	Process(ctx context.Context, ev domain.InboundEvent)
}

type MessengerConfig struct {
	WebhookPath string // default /webhook
	VerifyToken string
	AppSecret   string // optional: enables X-Hub-Signature-256 checks
	MetricsPath string // empty = not served
	Handler     EventHandler
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Messenger serves the page webhook: the subscription handshake, message
// deliveries, a liveness banner and optionally the metrics endpoint.
type Messenger struct {
	path        string
	verifyToken string
	appSecret   string
	metricsPath string
	handler     EventHandler
	metrics     *metrics.Collector
	logger      *slog.Logger
	mux         *http.ServeMux
}

func NewMessenger(cfg MessengerConfig) *Messenger {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
	}
	m := &Messenger{
		path:        cfg.WebhookPath,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		metricsPath: cfg.MetricsPath,
		handler:     cfg.Handler,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		mux:         http.NewServeMux(),
	}

	m.mux.HandleFunc("GET "+m.path, m.handleVerification)
	m.mux.HandleFunc("POST "+m.path, m.handleIncoming)
	m.mux.HandleFunc("GET /{$}", m.handleHome)
	if m.metricsPath != "" && m.metrics != nil {
		m.mux.Handle("GET "+m.metricsPath, m.metrics.Handler())
	}
	return m
}

// Handler returns the HTTP handler with every route mounted.
func (m *Messenger) Handler() http.Handler { return m.mux }

func (m *Messenger) handleHome(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(rw, Banner)
}

// handleVerification answers the subscription handshake. The challenge is
// echoed verbatim as text/plain.
func (m *Messenger) handleVerification(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if mode == "subscribe" && m.verifyToken != "" &&
		hmac.Equal([]byte(token), []byte(m.verifyToken)) {
		m.logger.Info("webhook verified")
		rw.WriteHeader(http.StatusOK)
		io.WriteString(rw, challenge)
		return
	}

	m.logger.Warn("webhook verification failed", "mode", mode)
	rw.WriteHeader(http.StatusForbidden)
	io.WriteString(rw, verifyFailed)
}

// handleIncoming unpacks a delivery and hands each text message to the
// relay before answering. The response is always 200 "OK"; anything that
// goes wrong is logged and counted instead.
func (m *Messenger) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	log := m.logger.With("request_id", reqID)
	defer func() {
		m.metrics.ObserveWebhook(r.Method, time.Since(start))
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.WriteHeader(http.StatusOK)
		io.WriteString(rw, "OK")
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		log.Warn("cannot read webhook body", "err", err)
		m.metrics.ObserveDrop(metrics.DropMalformed)
		return
	}
	if len(body) > maxBodyBytes {
		log.Warn("webhook body too large", "limit", maxBodyBytes)
		m.metrics.ObserveDrop(metrics.DropMalformed)
		return
	}

	if m.appSecret != "" && !verifySignature(body, m.appSecret, r.Header.Get("X-Hub-Signature-256")) {
		log.Warn("invalid webhook signature")
		m.metrics.ObserveDrop(metrics.DropSignature)
		return
	}

	events, err := parseEvents(body)
	if err != nil {
		log.Warn("malformed webhook payload", "err", err)
		m.metrics.ObserveDrop(metrics.DropMalformed)
		return
	}

	// Replies in flight outlive a platform that stops waiting.
	ctx := context.WithoutCancel(r.Context())
	for _, ev := range events {
		ev.RequestID = reqID
		log.Info("message received", "page", ev.TenantID, "sender", ev.SenderID, "text_len", len(ev.Text))
		m.handler.Process(ctx, ev)
	}
}

// verifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>").
func verifySignature(body []byte, secret, signature string) bool {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(hexSig)), []byte(computed))
}

// --- Messenger webhook payload types ---

type fbPayload struct {
	Object string    `json:"object"`
	Entry  []fbEntry `json:"entry"`
}

type fbEntry struct {
	ID        flexID        `json:"id"`
	Time      int64         `json:"time"`
	Messaging []fbMessaging `json:"messaging"`
}

type fbMessaging struct {
	Sender    fbUser     `json:"sender"`
	Recipient fbUser     `json:"recipient"`
	Timestamp int64      `json:"timestamp"`
	Message   *fbMessage `json:"message,omitempty"`
}

type fbUser struct {
	ID flexID `json:"id"`
}

// flexID accepts ids sent either as JSON strings or as bare numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type fbMessage struct {
	MID    string  `json:"mid"`
	Text   *string `json:"text,omitempty"`
	IsEcho bool    `json:"is_echo,omitempty"`
}

// parseEvents extracts the text messages of a page delivery. Deliveries for
// other objects, echoes of the page's own messages and non-text events
// (attachments, reads, postbacks) yield nothing.
func parseEvents(body []byte) ([]domain.InboundEvent, error) {
	var p fbPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if p.Object != "page" {
		return nil, nil
	}

	var events []domain.InboundEvent
	for _, entry := range p.Entry {
		pageID := string(entry.ID)
		for _, mg := range entry.Messaging {
			if mg.Message == nil || mg.Message.Text == nil || mg.Message.IsEcho || mg.Sender.ID == "" {
				continue
			}
			ts := time.Now()
			if mg.Timestamp > 0 {
				ts = time.UnixMilli(mg.Timestamp)
			}
			events = append(events, domain.InboundEvent{
				TenantID:  pageID,
				SenderID:  string(mg.Sender.ID),
				Text:      strings.TrimSpace(*mg.Message.Text),
				Timestamp: ts,
			})
		}
	}
	return events, nil
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string
	Port    int
	Handler http.Handler
	Logger  *slog.Logger
}

// Server runs the webhook listener until its context is cancelled.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      150 * time.Second, // replies are generated before the response
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger: cfg.Logger,
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("webhook server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}
