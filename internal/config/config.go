package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for HeavenBot.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Server     ServerConfig     `json:"server"`
	Tables     TablesConfig     `json:"tables"`
	Generation GenerationConfig `json:"generation"`
	Graph      GraphConfig      `json:"graph"`
	Reply      ReplyConfig      `json:"reply"`
	Memory     MemoryConfig     `json:"memory"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"` // debug | info | warn | error
}

// ServerConfig configures the inbound webhook HTTP server.
type ServerConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	WebhookPath string `json:"webhookPath"`
	// VerifyToken is the static shared secret echoed back during the
	// subscription handshake. It only guards the handshake.
	VerifyToken string `json:"verifyToken"`
	AppSecret   string `json:"appSecret,omitempty"` // optional: enables X-Hub-Signature-256 checks
}

// TablesConfig points at the tabular files loaded once at startup.
type TablesConfig struct {
	Tenants string `json:"tenants"`           // .csv | .yaml
	Intents string `json:"intents,omitempty"` // .yaml | .csv; empty = built-in table
}

type GenerationConfig struct {
	Backend                 string `json:"backend"` // "gemini" | "openai"
	APIBase                 string `json:"apiBase,omitempty"`
	Model                   string `json:"model,omitempty"`
	TimeoutSeconds          int    `json:"timeoutSeconds"`
	MaxRetries              int    `json:"maxRetries"`
	RateLimitPerMinute      int    `json:"rateLimitPerMinute,omitempty"` // per tenant credential; 0 = unlimited
	RateLimitBurst          int    `json:"rateLimitBurst,omitempty"`
	RateLimitMaxWaitSeconds int    `json:"rateLimitMaxWaitSeconds,omitempty"` // 0 = provider default
}

// GraphConfig configures the outbound send API.
type GraphConfig struct {
	APIBase        string `json:"apiBase"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type ReplyConfig struct {
	MaxWords        int      `json:"maxWords"`   // 0 = no length ceiling in the prompt
	SalesStyle      string   `json:"salesStyle"` // "template" | "generative"
	DefaultLanguage string   `json:"defaultLanguage"`
	Languages       []string `json:"languages"`
	OverridePhrases []string `json:"overridePhrases,omitempty"`
	Greeting        string   `json:"greeting,omitempty"`
}

type MemoryConfig struct {
	MaxSenders int `json:"maxSenders"`
	TTLMinutes int `json:"ttlMinutes"` // 0 = no idle expiry
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.heavenbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".heavenbot"
	}
	return filepath.Join(home, ".heavenbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	// Table paths are relative to the config file's directory.
	base := filepath.Dir(path)
	cfg.Tables.Tenants = resolvePath(base, cfg.Tables.Tenants)
	cfg.Tables.Intents = resolvePath(base, cfg.Tables.Intents)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOrDefaults loads path like Load, but a missing file yields the
// defaults (plus environment overrides) with tables relative to the working
// directory. found reports whether the file existed.
func LoadOrDefaults(path string) (cfg *Config, found bool, err error) {
	if _, statErr := os.Stat(ExpandPath(path)); errors.Is(statErr, fs.ErrNotExist) {
		cfg = Defaults()
		applyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, false, fmt.Errorf("config validation: %w", err)
		}
		return cfg, false, nil
	}
	cfg, err = Load(path)
	return cfg, true, err
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		errs = append(errs, "server.webhookPath must start with /")
	}
	if cfg.Server.VerifyToken == "" {
		errs = append(errs, "server.verifyToken is required")
	}

	switch cfg.Generation.Backend {
	case "gemini", "openai":
	default:
		errs = append(errs, "generation.backend must be one of: gemini, openai")
	}
	if cfg.Generation.TimeoutSeconds < 1 {
		errs = append(errs, "generation.timeoutSeconds must be >= 1")
	}
	if cfg.Generation.MaxRetries < 0 || cfg.Generation.MaxRetries > 5 {
		errs = append(errs, "generation.maxRetries must be between 0 and 5")
	}
	if cfg.Generation.RateLimitPerMinute < 0 {
		errs = append(errs, "generation.rateLimitPerMinute must be >= 0")
	}
	if cfg.Generation.RateLimitMaxWaitSeconds < 0 {
		errs = append(errs, "generation.rateLimitMaxWaitSeconds must be >= 0")
	}

	if cfg.Graph.APIBase == "" {
		errs = append(errs, "graph.apiBase is required")
	}
	if cfg.Graph.TimeoutSeconds < 1 {
		errs = append(errs, "graph.timeoutSeconds must be >= 1")
	}

	if cfg.Reply.MaxWords < 0 {
		errs = append(errs, "reply.maxWords must be >= 0")
	}
	switch cfg.Reply.SalesStyle {
	case "template", "generative":
	default:
		errs = append(errs, "reply.salesStyle must be one of: template, generative")
	}
	if cfg.Reply.DefaultLanguage == "" {
		errs = append(errs, "reply.defaultLanguage is required")
	}

	if cfg.Memory.MaxSenders < 1 {
		errs = append(errs, "memory.maxSenders must be >= 1")
	}
	if cfg.Memory.TTLMinutes < 0 {
		errs = append(errs, "memory.ttlMinutes must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// applyEnvOverrides lets PORT and VERIFY_TOKEN from the environment (or .env)
// win over the file, which is how hosting platforms inject them.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VERIFY_TOKEN"); v != "" {
		cfg.Server.VerifyToken = v
	}
}

func resolvePath(base, path string) string {
	if path == "" {
		return ""
	}
	path = ExpandPath(path)
	if filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(base, path)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
