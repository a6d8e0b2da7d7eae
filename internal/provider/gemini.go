package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

const (
	geminiAPIBase      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.0-flash"
)

// ErrEmptyGeneration is returned when the backend answers without any text.
var ErrEmptyGeneration = errors.New("empty generation")

// Gemini implements domain.Generator with the Gemini generateContent REST API.
// The API key travels with each request so every page can use its own.
type Gemini struct {
	apiBase    string
	model      string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

type GeminiConfig struct {
	APIBase    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.APIBase == "" {
		cfg.APIBase = geminiAPIBase
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	return &Gemini{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client:     SharedHTTPClient(cfg.Timeout),
		logger:     cfg.Logger,
	}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *Gemini) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if req.Credential == "" {
		return "", fmt.Errorf("gemini: no API key for this page")
	}
	model := req.Model
	if model == "" {
		model = g.model
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.apiBase, model)
	start := time.Now()
	resp, err := doWithRetry(ctx, g.client, g.maxRetries, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("x-goog-api-key", req.Credential)
		return r, nil
	}, g.logger)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini %d: %s", resp.StatusCode, string(respBody))
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", gr.PromptFeedback.BlockReason)
	}

	var sb strings.Builder
	if len(gr.Candidates) > 0 {
		for _, p := range gr.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyGeneration)
	}

	g.logger.Debug("gemini generation done", "model", model, "len", len(text), "latency", time.Since(start))
	return text, nil
}
