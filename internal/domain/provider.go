package domain

import "context"

// GenerateRequest is a single-prompt text generation call made with a
// tenant's own credential.
type GenerateRequest struct {
	Credential string
	Prompt     string
	Model      string // optional: override the backend default
}

// Generator is the interface all text-generation backends implement.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}

// Sender delivers replies to the messaging platform.
// Delivery is best-effort: failures are reported to the caller but never retried.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage, credential string) error
}
