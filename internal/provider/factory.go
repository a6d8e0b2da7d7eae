package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dinhthangx01/facebook-bot-multi/internal/config"
	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

// Constructor builds a generator from the generation settings.
type Constructor func(gc config.GenerationConfig, logger *slog.Logger) domain.Generator

// Factory maps backend names to constructors.
type Factory struct {
	logger       *slog.Logger
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory creates a factory with the built-in backends registered.
func NewFactory(logger *slog.Logger) *Factory {
	f := &Factory{
		logger:       logger,
		constructors: make(map[string]Constructor),
	}
	f.constructors["gemini"] = func(gc config.GenerationConfig, logger *slog.Logger) domain.Generator {
		return NewGemini(GeminiConfig{
			APIBase:    gc.APIBase,
			Model:      gc.Model,
			MaxRetries: gc.MaxRetries,
			Timeout:    time.Duration(gc.TimeoutSeconds) * time.Second,
			Logger:     logger,
		})
	}
	f.constructors["openai"] = func(gc config.GenerationConfig, logger *slog.Logger) domain.Generator {
		return NewOpenAI(OpenAIConfig{
			APIBase:    gc.APIBase,
			Model:      gc.Model,
			MaxRetries: gc.MaxRetries,
			Timeout:    time.Duration(gc.TimeoutSeconds) * time.Second,
			Logger:     logger,
		})
	}
	return f
}

// Register adds or replaces a backend constructor.
func (f *Factory) Register(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

// Backends lists the registered backend names.
func (f *Factory) Backends() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the configured backend, wrapped with the per-credential rate
// limit when one is set.
func (f *Factory) Build(gc config.GenerationConfig) (domain.Generator, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[gc.Backend]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown generation backend: %s", gc.Backend)
	}

	g := ctor(gc, f.logger.With("backend", gc.Backend))
	maxWait := time.Duration(gc.RateLimitMaxWaitSeconds) * time.Second
	return NewLimited(g, gc.RateLimitPerMinute, gc.RateLimitBurst, maxWait), nil
}
