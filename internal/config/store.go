package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

// Store holds the per-page settings and the global intent table.
// It is built once at startup and never mutated afterwards, so reads need no locking.
type Store struct {
	tenants map[string]domain.TenantConfig
	rules   []domain.IntentRule
}

// NewStore validates and normalises the tables and returns an immutable Store.
// Keywords are lower-cased and trimmed; rule order is preserved.
func NewStore(tenants []domain.TenantConfig, rules []domain.IntentRule) (*Store, error) {
	s := &Store{
		tenants: make(map[string]domain.TenantConfig, len(tenants)),
		rules:   make([]domain.IntentRule, 0, len(rules)),
	}

	for _, t := range tenants {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			continue
		}
		if _, dup := s.tenants[t.ID]; dup {
			return nil, fmt.Errorf("duplicate page id %q", t.ID)
		}
		t.StoreLink = strings.TrimSpace(t.StoreLink)
		s.tenants[t.ID] = t
	}

	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		mode := strings.TrimSpace(r.Mode)
		if mode == "" {
			return nil, fmt.Errorf("intent rule %d: mode is required", i+1)
		}
		if seen[mode] {
			return nil, fmt.Errorf("intent rule %d: duplicate mode %q", i+1, mode)
		}
		seen[mode] = true

		keywords := normalizeKeywords(r.Keywords)
		if len(keywords) == 0 {
			return nil, fmt.Errorf("intent rule %q: at least one keyword is required", mode)
		}
		s.rules = append(s.rules, domain.IntentRule{
			Mode:     mode,
			Keywords: keywords,
			Prompt:   strings.TrimSpace(r.Prompt),
		})
	}

	return s, nil
}

// LoadStore reads the tenant table and the intent table from disk.
// An empty intentPath selects DefaultIntentRules.
func LoadStore(tenantPath, intentPath string) (*Store, error) {
	tenants, err := LoadTenants(tenantPath)
	if err != nil {
		return nil, err
	}

	rules := DefaultIntentRules()
	if intentPath != "" {
		if rules, err = LoadIntentRules(intentPath); err != nil {
			return nil, err
		}
	}

	return NewStore(tenants, rules)
}

// Tenant resolves a page id. Unknown ids return *domain.ConfigResolutionError.
func (s *Store) Tenant(id string) (domain.TenantConfig, error) {
	t, ok := s.tenants[id]
	if !ok {
		return domain.TenantConfig{}, &domain.ConfigResolutionError{TenantID: id}
	}
	return t, nil
}

// Tenants returns every configured page, sorted by id.
func (s *Store) Tenants() []domain.TenantConfig {
	out := make([]domain.TenantConfig, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rules returns the intent table in declaration order.
func (s *Store) Rules() []domain.IntentRule {
	out := make([]domain.IntentRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Rule returns the intent rule for a mode key, if one is declared.
func (s *Store) Rule(mode string) (domain.IntentRule, bool) {
	for _, r := range s.rules {
		if r.Mode == mode {
			return r, true
		}
	}
	return domain.IntentRule{}, false
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
