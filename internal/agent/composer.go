package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dinhthangx01/facebook-bot-multi/internal/catalog"
	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
	"github.com/dinhthangx01/facebook-bot-multi/internal/intent"
	"github.com/dinhthangx01/facebook-bot-multi/internal/metrics"
)

// Fixed replies.
const (
	FallbackReply   = "Sorry, I'm having trouble replying right now."
	StoreUnsetReply = "🛍️ Our Heaven store link is not configured yet."
	ImageEditReply  = "🖼️ To edit or restore a photo, send the picture here and tell us what you would like changed. " +
		"Our team will reply with the result."
	DefaultGreeting = "👋 Welcome to Heaven. I'm here to listen whenever you want to talk about someone you miss.\n\n" +
		"You can also:\n" +
		"• ask for the Heaven store link\n" +
		"• ask about a product by name\n" +
		"• ask us to restore or edit a photo"
)

const storeTemplate = "🛒 You can explore Heaven products here:\n%s\n\n" +
	"Would you like me to suggest a few beautiful memorial gifts?"

// Sales reply styles.
const (
	SalesTemplate   = "template"
	SalesGenerative = "generative"
)

// CatalogLookup finds the catalog entries of a page that match a message.
// LookupExact only considers descriptions quoted verbatim in the message.
type CatalogLookup interface {
	Lookup(ctx context.Context, ref, text string) []domain.CatalogEntry
	LookupExact(ctx context.Context, ref, text string) []domain.CatalogEntry
}

// LanguageDetector picks the language to reply in.
type LanguageDetector interface {
	Detect(text string) string
}

// ComposerConfig holds the collaborators and reply settings of a Composer.
type ComposerConfig struct {
	Generator  domain.Generator
	Catalog    CatalogLookup
	Languages  LanguageDetector
	Metrics    *metrics.Collector
	Logger     *slog.Logger
	MaxWords   int // 0 = no length ceiling
	SalesStyle string
	Greeting   string
}

// Composer turns a classified message into reply texts.
type Composer struct {
	gen        domain.Generator
	catalog    CatalogLookup
	languages  LanguageDetector
	metrics    *metrics.Collector
	logger     *slog.Logger
	maxWords   int
	salesStyle string
	greeting   string
}

func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.MaxWords < 0 {
		cfg.MaxWords = 0
	}
	if cfg.SalesStyle == "" {
		cfg.SalesStyle = SalesTemplate
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	return &Composer{
		gen:        cfg.Generator,
		catalog:    cfg.Catalog,
		languages:  cfg.Languages,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		maxWords:   cfg.MaxWords,
		salesStyle: cfg.SalesStyle,
		greeting:   cfg.Greeting,
	}
}

// Request is everything the composer needs to answer one message.
type Request struct {
	Tenant       domain.TenantConfig
	Mode         string
	Fragment     string // prompt fragment of the matched intent rule
	Text         string
	History      []string // sender's earlier messages, oldest first
	FirstContact bool
}

// Compose returns the reply texts in send order. A first contact opens with
// the greeting; meaningless text gets nothing beyond that.
func (c *Composer) Compose(ctx context.Context, req Request) []string {
	var out []string
	if req.FirstContact {
		out = append(out, c.greeting)
	}
	if intent.Meaningless(req.Text) {
		return out
	}
	if req.Mode == domain.ModeGreeting && req.FirstContact {
		return out
	}
	return append(out, c.reply(ctx, req))
}

func (c *Composer) reply(ctx context.Context, req Request) string {
	switch req.Mode {
	case domain.ModeGreeting:
		return c.greeting
	case domain.ModeBuy:
		return c.sales(ctx, req)
	case domain.ModeImageEdit:
		return ImageEditReply
	case domain.ModeCatalog:
		if c.catalog != nil {
			if matches := c.catalog.Lookup(ctx, req.Tenant.CatalogRef, req.Text); len(matches) > 0 {
				return catalog.Format(matches)
			}
		}
		c.logger.Debug("no catalog match, answering as chat", "page", req.Tenant.ID)
		return c.chat(ctx, req)
	default:
		// A product named verbatim is answered from the catalog even
		// without a lookup keyword.
		if c.catalog != nil && req.Tenant.CatalogRef != "" {
			if matches := c.catalog.LookupExact(ctx, req.Tenant.CatalogRef, req.Text); len(matches) > 0 {
				return catalog.Format(matches)
			}
		}
		return c.chat(ctx, req)
	}
}

func (c *Composer) chat(ctx context.Context, req Request) string {
	persona := req.Tenant.BasePrompt
	if strings.TrimSpace(persona) == "" {
		persona = ComfortPersona
	}
	text, ok := c.generate(ctx, req.Tenant, c.prompt(persona, req))
	if !ok {
		return FallbackReply
	}
	return text
}

// sales answers a purchase inquiry. The store link is always surfaced when
// the page has one; if generation fails the template is used instead.
func (c *Composer) sales(ctx context.Context, req Request) string {
	link := req.Tenant.StoreLink
	if link == "" {
		return StoreUnsetReply
	}
	if c.salesStyle != SalesGenerative {
		return fmt.Sprintf(storeTemplate, link)
	}

	text, ok := c.generate(ctx, req.Tenant, c.prompt(SalesPersona, req))
	if !ok {
		return fmt.Sprintf(storeTemplate, link)
	}
	if !strings.Contains(text, link) {
		text += "\n\n" + link
	}
	return text
}

func (c *Composer) prompt(persona string, req Request) string {
	return Prompt{
		Persona:  persona,
		Fragment: req.Fragment,
		Language: c.languages.Detect(req.Text),
		MaxWords: c.maxWords,
		Previous: req.History,
		Message:  req.Text,
	}.String()
}

// generate calls the backend with the page's credential. Any failure,
// including a blank answer, reports ok=false.
func (c *Composer) generate(ctx context.Context, tenant domain.TenantConfig, prompt string) (string, bool) {
	start := time.Now()
	text, err := c.gen.Generate(ctx, domain.GenerateRequest{
		Credential: tenant.GenerationKey,
		Prompt:     prompt,
	})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = fmt.Errorf("%s returned no text", c.gen.Name())
	}
	c.metrics.ObserveGeneration(c.gen.Name(), time.Since(start), err)
	if err != nil {
		c.logger.Warn("generation failed", "page", tenant.ID, "backend", c.gen.Name(), "err", err)
		return "", false
	}
	return text, true
}
