package domain

import "fmt"

// Reserved mode keys. ModeChat is the single fallback for text that no
// intent rule claims.
const (
	ModeGreeting  = "greeting"
	ModeBuy       = "buy_product"
	ModeCatalog   = "catalog_lookup"
	ModeChat      = "chat_mode"
	ModeImageEdit = "image_edit"
)

// TenantConfig holds the settings of one messaging-platform page.
type TenantConfig struct {
	ID            string `json:"id" yaml:"page_id"`
	Name          string `json:"name,omitempty" yaml:"page_name,omitempty"`
	AccessToken   string `json:"-" yaml:"token"`
	GenerationKey string `json:"-" yaml:"gemini_key"`
	StoreLink     string `json:"storeLink,omitempty" yaml:"store_link,omitempty"`
	BasePrompt    string `json:"basePrompt,omitempty" yaml:"base_prompt,omitempty"`
	CatalogRef    string `json:"catalogRef,omitempty" yaml:"catalog,omitempty"`
}

// IntentRule maps trigger keywords to a mode key. Keywords are stored lower-cased.
type IntentRule struct {
	Mode     string   `json:"mode" yaml:"mode"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Prompt   string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// CatalogEntry is one product line of a tenant catalog.
type CatalogEntry struct {
	Description string `json:"description" yaml:"description"`
	Link        string `json:"link" yaml:"link"`
}

// ConfigResolutionError reports an inbound event for a page that has no configuration.
type ConfigResolutionError struct {
	TenantID string
}

func (e *ConfigResolutionError) Error() string {
	return fmt.Sprintf("no configuration for page %q", e.TenantID)
}
