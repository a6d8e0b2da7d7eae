package config

import "github.com/dinhthangx01/facebook-bot-multi/internal/domain"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        10000,
			WebhookPath: "/webhook",
		},
		Tables: TablesConfig{
			Tenants: "pages_config.csv",
		},
		Generation: GenerationConfig{
			Backend:        "gemini",
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 60,
			MaxRetries:     1,
		},
		Graph: GraphConfig{
			APIBase:        "https://graph.facebook.com/v17.0",
			TimeoutSeconds: 15,
		},
		Reply: ReplyConfig{
			MaxWords:        200,
			SalesStyle:      "template",
			DefaultLanguage: "en",
			Languages:       []string{"en", "vi", "es", "fr", "de", "pt"},
			OverridePhrases: []string{"i miss"},
		},
		Memory: MemoryConfig{
			MaxSenders: 10000,
			TTLMinutes: 24 * 60,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// DefaultIntentRules is the intent table used when no intent file is
// configured. Purchase keywords come first so that "gift shop price"
// resolves to buy_product.
func DefaultIntentRules() []domain.IntentRule {
	return []domain.IntentRule{
		{
			Mode: domain.ModeBuy,
			Keywords: []string{
				"buy something", "want to buy", "buy a product", "buy product", "i want to order",
				"link shop", "link store", "heaven gift", "heaven store", "heaven shirt",
				"buy", "purchase", "order", "shopping", "shop", "store", "gift", "t-shirt",
				"tshirt", "shirt", "hoodie", "product", "item", "merch", "sale",
				"clothes", "apparel", "quote",
			},
		},
		{
			Mode:     domain.ModeCatalog,
			Keywords: []string{"catalog", "price", "how much", "details", "link for"},
		},
		{
			Mode:     domain.ModeImageEdit,
			Keywords: []string{"edit photo", "edit image", "restore photo", "photo edit"},
		},
	}
}
