package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
	"github.com/dinhthangx01/facebook-bot-multi/internal/intent"
	"github.com/dinhthangx01/facebook-bot-multi/internal/memory"
	"github.com/dinhthangx01/facebook-bot-multi/internal/metrics"
)

// TenantResolver maps a page id to its settings.
type TenantResolver interface {
	Tenant(id string) (domain.TenantConfig, error)
}

type RelayConfig struct {
	Tenants    TenantResolver
	Classifier *intent.Classifier
	Memory     *memory.Memory
	Composer   *Composer
	Sender     domain.Sender
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Relay handles one inbound event end to end: resolve the page, remember the
// message, classify it, compose the replies and deliver them.
type Relay struct {
	tenants    TenantResolver
	classifier *intent.Classifier
	memory     *memory.Memory
	composer   *Composer
	sender     domain.Sender
	metrics    *metrics.Collector
	logger     *slog.Logger
}

func NewRelay(cfg RelayConfig) *Relay {
	return &Relay{
		tenants:    cfg.Tenants,
		classifier: cfg.Classifier,
		memory:     cfg.Memory,
		composer:   cfg.Composer,
		sender:     cfg.Sender,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Handle composes the replies for ev without sending them. An unknown page
// returns *domain.ConfigResolutionError.
func (r *Relay) Handle(ctx context.Context, ev domain.InboundEvent) ([]domain.OutboundMessage, error) {
	_, msgs, err := r.handle(ctx, ev)
	return msgs, err
}

func (r *Relay) handle(ctx context.Context, ev domain.InboundEvent) (domain.TenantConfig, []domain.OutboundMessage, error) {
	tenant, err := r.tenants.Tenant(ev.TenantID)
	if err != nil {
		return domain.TenantConfig{}, nil, err
	}

	history, first := r.memory.Record(tenant.ID, ev.SenderID, ev.Text)
	r.metrics.SetActiveSenders(r.memory.Len())

	mode := r.classifier.Classify(ev.Text)
	rule, _ := r.classifier.Rule(mode)
	r.metrics.ObserveMessage(tenant.ID, mode)

	r.logger.Debug("message classified",
		"request_id", ev.RequestID,
		"page", tenant.ID,
		"mode", mode,
		"first_contact", first,
	)

	texts := r.composer.Compose(ctx, Request{
		Tenant:       tenant,
		Mode:         mode,
		Fragment:     rule.Prompt,
		Text:         ev.Text,
		History:      history,
		FirstContact: first,
	})

	msgs := make([]domain.OutboundMessage, 0, len(texts))
	for _, t := range texts {
		msgs = append(msgs, domain.OutboundMessage{
			TenantID:    tenant.ID,
			RecipientID: ev.SenderID,
			Text:        t,
		})
	}
	return tenant, msgs, nil
}

// Process handles ev and delivers every reply with the page's own token.
// Nothing is returned: failures are logged and counted.
func (r *Relay) Process(ctx context.Context, ev domain.InboundEvent) {
	log := r.logger.With("request_id", ev.RequestID, "page", ev.TenantID)

	tenant, msgs, err := r.handle(ctx, ev)
	if err != nil {
		var cre *domain.ConfigResolutionError
		if errors.As(err, &cre) {
			r.metrics.ObserveDrop(metrics.DropUnknownPage)
			log.Warn("dropping event for unconfigured page")
			return
		}
		log.Error("handle failed", "err", err)
		return
	}
	if len(msgs) == 0 {
		log.Debug("nothing to reply")
		return
	}

	for _, m := range msgs {
		err := r.sender.Send(ctx, m, tenant.AccessToken)
		r.metrics.ObserveDelivery(tenant.ID, err)
		if err != nil {
			log.Error("delivery failed", "recipient", m.RecipientID, "err", err)
			continue
		}
		log.Info("reply sent", "recipient", m.RecipientID, "len", len(m.Text))
	}
}
