package catalog

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

// LoaderFunc resolves a catalog reference to its entries.
type LoaderFunc func(ctx context.Context, ref string) ([]domain.CatalogEntry, error)

// Cache resolves each catalog reference once and keeps the result for the
// lifetime of the process. Failed loads are not cached.
type Cache struct {
	load   LoaderFunc
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string][]domain.CatalogEntry
	group   singleflight.Group
}

// NewCache creates a cache backed by load; nil selects Load.
func NewCache(load LoaderFunc, logger *slog.Logger) *Cache {
	if load == nil {
		load = Load
	}
	return &Cache{
		load:    load,
		logger:  logger,
		entries: make(map[string][]domain.CatalogEntry),
	}
}

// Entries returns the catalog for ref. An empty ref or an unreadable source
// yields no entries: a missing catalog means "no match", never an error.
func (c *Cache) Entries(ctx context.Context, ref string) []domain.CatalogEntry {
	if ref == "" {
		return nil
	}

	c.mu.RLock()
	entries, ok := c.entries[ref]
	c.mu.RUnlock()
	if ok {
		return entries
	}

	v, err, _ := c.group.Do(ref, func() (any, error) {
		entries, err := c.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[ref] = entries
		c.mu.Unlock()
		c.logger.Info("catalog loaded", "ref", ref, "entries", len(entries))
		return entries, nil
	})
	if err != nil {
		c.logger.Warn("catalog unavailable", "ref", ref, "err", err)
		return nil
	}
	return v.([]domain.CatalogEntry)
}

// Lookup matches text against the catalog behind ref.
func (c *Cache) Lookup(ctx context.Context, ref, text string) []domain.CatalogEntry {
	return Match(text, c.Entries(ctx, ref))
}

// LookupExact matches text against the catalog behind ref using only
// verbatim descriptions.
func (c *Cache) LookupExact(ctx context.Context, ref, text string) []domain.CatalogEntry {
	return MatchExact(text, c.Entries(ctx, ref))
}
