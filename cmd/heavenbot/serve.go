package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dinhthangx01/facebook-bot-multi/internal/agent"
	"github.com/dinhthangx01/facebook-bot-multi/internal/catalog"
	"github.com/dinhthangx01/facebook-bot-multi/internal/channel"
	"github.com/dinhthangx01/facebook-bot-multi/internal/config"
	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
	"github.com/dinhthangx01/facebook-bot-multi/internal/intent"
	"github.com/dinhthangx01/facebook-bot-multi/internal/langdetect"
	"github.com/dinhthangx01/facebook-bot-multi/internal/memory"
	"github.com/dinhthangx01/facebook-bot-multi/internal/metrics"
	"github.com/dinhthangx01/facebook-bot-multi/internal/provider"
)

// app is the wired relay: tables, collaborators and the HTTP handler.
type app struct {
	cfg        *config.Config
	store      *config.Store
	classifier *intent.Classifier
	catalogs   *catalog.Cache
	relay      *agent.Relay
	messenger  *channel.Messenger
	metrics    *metrics.Collector
}

// buildApp loads the tables and connects every component. A nil sender
// selects the Graph API gateway; a nil generator selects the configured backend.
func buildApp(cfg *config.Config, logger *slog.Logger, gen domain.Generator, sender domain.Sender) (*app, error) {
	store, err := config.LoadStore(cfg.Tables.Tenants, cfg.Tables.Intents)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	if gen == nil {
		if gen, err = provider.NewFactory(logger).Build(cfg.Generation); err != nil {
			return nil, err
		}
	}
	if sender == nil {
		sender = channel.NewGateway(channel.GatewayConfig{
			APIBase: cfg.Graph.APIBase,
			Timeout: time.Duration(cfg.Graph.TimeoutSeconds) * time.Second,
			Logger:  logger.With("component", "gateway"),
		})
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	catalogs := catalog.NewCache(nil, logger.With("component", "catalog"))
	classifier := intent.NewClassifier(store.Rules(), logger.With("component", "intent"))

	composer := agent.NewComposer(agent.ComposerConfig{
		Generator: gen,
		Catalog:   catalogs,
		Languages: langdetect.New(langdetect.Config{
			Default:   cfg.Reply.DefaultLanguage,
			Allowed:   cfg.Reply.Languages,
			Overrides: cfg.Reply.OverridePhrases,
		}),
		Metrics:    collector,
		Logger:     logger.With("component", "composer"),
		MaxWords:   cfg.Reply.MaxWords,
		SalesStyle: cfg.Reply.SalesStyle,
		Greeting:   cfg.Reply.Greeting,
	})

	relay := agent.NewRelay(agent.RelayConfig{
		Tenants:    store,
		Classifier: classifier,
		Memory: memory.New(memory.Config{
			MaxSenders: cfg.Memory.MaxSenders,
			TTL:        time.Duration(cfg.Memory.TTLMinutes) * time.Minute,
			Logger:     logger.With("component", "memory"),
		}),
		Composer: composer,
		Sender:   sender,
		Metrics:  collector,
		Logger:   logger.With("component", "relay"),
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}
	messenger := channel.NewMessenger(channel.MessengerConfig{
		WebhookPath: cfg.Server.WebhookPath,
		VerifyToken: cfg.Server.VerifyToken,
		AppSecret:   cfg.Server.AppSecret,
		MetricsPath: metricsPath,
		Handler:     relay,
		Metrics:     collector,
		Logger:      logger.With("component", "webhook"),
	})

	return &app{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		catalogs:   catalogs,
		relay:      relay,
		messenger:  messenger,
		metrics:    collector,
	}, nil
}

// warmCatalogs loads every page catalog once so broken references show up
// in the startup log rather than on the first lookup.
func (a *app) warmCatalogs(ctx context.Context) {
	for _, t := range a.store.Tenants() {
		if t.CatalogRef != "" {
			a.catalogs.Entries(ctx, t.CatalogRef)
		}
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long:  "Serves the Messenger webhook, the liveness banner and metrics. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger = newLogger(cfg.General.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	a.warmCatalogs(ctx)

	logger.Info("pages loaded", "count", len(a.store.Tenants()), "intents", len(a.store.Rules()))
	if cfg.Server.AppSecret == "" {
		logger.Warn("server.appSecret not set, webhook signatures are not checked")
	}

	srv := channel.NewServer(channel.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Handler: a.messenger.Handler(),
		Logger:  logger,
	})
	return srv.Start(ctx)
}

func classifyCmd() *cobra.Command {
	var (
		page    string
		sender  string
		compose bool
	)
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Show the intent mode for a message, optionally composing the replies",
		Long: "Prints the mode the intent table assigns to the text. With --compose the replies for --page " +
			"are composed (this calls the generation backend) and printed instead of being sent.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")

			a, err := buildApp(cfg, logger, nil, discardSender{})
			if err != nil {
				return err
			}
			mode := a.classifier.Classify(text)
			fmt.Printf("mode: %s\n", mode)
			if intent.Meaningless(text) {
				fmt.Println("(meaningless: only a first-contact greeting would be sent)")
			}
			if !compose {
				return nil
			}

			msgs, err := a.relay.Handle(cmd.Context(), domain.InboundEvent{
				TenantID:  page,
				SenderID:  sender,
				Text:      text,
				RequestID: uuid.NewString(),
				Timestamp: time.Now(),
			})
			if err != nil {
				return err
			}
			for i, m := range msgs {
				fmt.Printf("--- reply %d ---\n%s\n", i+1, m.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page id to compose for")
	cmd.Flags().StringVar(&sender, "sender", "cli", "sender id")
	cmd.Flags().BoolVar(&compose, "compose", false, "compose the replies for --page")
	return cmd
}

// discardSender satisfies domain.Sender for commands that never deliver.
type discardSender struct{}

func (discardSender) Send(context.Context, domain.OutboundMessage, string) error { return nil }
