package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

const (
	graphAPIBase = "https://graph.facebook.com/v17.0"

	// messengerMaxMsgLen is the platform's limit on one text message, in characters.
	messengerMaxMsgLen = 2000
)

type GatewayConfig struct {
	APIBase string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Gateway implements domain.Sender for the Messenger Send API. Each call
// uses the page token it is given; nothing is retried.
type Gateway struct {
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.APIBase == "" {
		cfg.APIBase = graphAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Gateway{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type sendRequest struct {
	Recipient     sendRecipient `json:"recipient"`
	Message       sendMessage   `json:"message"`
	MessagingType string        `json:"messaging_type"`
}

type sendRecipient struct {
	ID string `json:"id"`
}

type sendMessage struct {
	Text string `json:"text"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers msg to its recipient, split into as many platform messages
// as its length requires. The first failing part aborts the rest.
func (g *Gateway) Send(ctx context.Context, msg domain.OutboundMessage, credential string) error {
	if credential == "" {
		return fmt.Errorf("page %s has no access token", msg.TenantID)
	}
	for _, part := range splitMessage(msg.Text, messengerMaxMsgLen) {
		if err := g.send(ctx, msg.RecipientID, part, credential); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, recipient, text, credential string) error {
	body, err := json.Marshal(sendRequest{
		Recipient:     sendRecipient{ID: recipient},
		Message:       sendMessage{Text: text},
		MessagingType: "RESPONSE",
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	endpoint := g.apiBase + "/me/messages?access_token=" + url.QueryEscape(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ge graphError
		if json.Unmarshal(respBody, &ge) == nil && ge.Error.Message != "" {
			return fmt.Errorf("graph API %d: %s (code %d)", resp.StatusCode, ge.Error.Message, ge.Error.Code)
		}
		return fmt.Errorf("graph API %d: %s", resp.StatusCode, string(respBody))
	}

	g.logger.Debug("graph send ok", "recipient", recipient, "len", len(text))
	return nil
}

// redact strips the query string, which carries the page token, from
// transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			ue.URL = u.String()
		}
	}
	return err
}

// splitMessage splits msg into chunks of at most maxLen characters,
// preferring to cut at a newline, then at a space.
func splitMessage(msg string, maxLen int) []string {
	if utf8.RuneCountInString(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	runes := []rune(msg)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		cut := maxLen
		window := string(runes[:maxLen])
		if idx := strings.LastIndex(window, "\n"); idx >= 0 && utf8.RuneCountInString(window[:idx]) > maxLen/2 {
			cut = utf8.RuneCountInString(window[:idx]) + 1
		} else if idx := strings.LastIndex(window, " "); idx >= 0 && utf8.RuneCountInString(window[:idx]) > maxLen/2 {
			cut = utf8.RuneCountInString(window[:idx]) + 1
		}

		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
