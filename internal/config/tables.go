package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"

	"gopkg.in/yaml.v3"
)

// tenantColumns is the column order of the page table when it has no
// recognisable header row.
var tenantColumns = []string{"page_name", "page_id", "token", "gemini_key", "store_link", "base_prompt", "catalog"}

// LoadTenants reads the page table from a .csv or .yaml file.
// Rows without a page id are skipped.
func LoadTenants(path string) ([]domain.TenantConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var tenants []domain.TenantConfig
		if err := readYAML(path, &tenants); err != nil {
			return nil, err
		}
		for i := range tenants {
			tenants[i].CatalogRef = resolveRef(filepath.Dir(path), tenants[i].CatalogRef)
		}
		return tenants, nil
	case ".csv":
		rows, err := readCSV(path, tenantColumns)
		if err != nil {
			return nil, err
		}
		tenants := make([]domain.TenantConfig, 0, len(rows))
		for _, row := range rows {
			if row["page_id"] == "" {
				continue
			}
			tenants = append(tenants, domain.TenantConfig{
				ID:            row["page_id"],
				Name:          row["page_name"],
				AccessToken:   row["token"],
				GenerationKey: row["gemini_key"],
				StoreLink:     row["store_link"],
				BasePrompt:    row["base_prompt"],
				CatalogRef:    resolveRef(filepath.Dir(path), row["catalog"]),
			})
		}
		return tenants, nil
	default:
		return nil, fmt.Errorf("page table %s: unsupported format (want .csv or .yaml)", path)
	}
}

// LoadIntentRules reads the intent table. YAML files hold an ordered list of
// {mode, keywords, prompt}; CSV files hold mode,keywords,prompt rows with
// keywords separated by "|".
func LoadIntentRules(path string) ([]domain.IntentRule, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var rules []domain.IntentRule
		if err := readYAML(path, &rules); err != nil {
			return nil, err
		}
		return rules, nil
	case ".csv":
		rows, err := readCSV(path, []string{"mode", "keywords", "prompt"})
		if err != nil {
			return nil, err
		}
		rules := make([]domain.IntentRule, 0, len(rows))
		for _, row := range rows {
			if row["mode"] == "" {
				continue
			}
			rules = append(rules, domain.IntentRule{
				Mode:     row["mode"],
				Keywords: strings.Split(row["keywords"], "|"),
				Prompt:   row["prompt"],
			})
		}
		return rules, nil
	default:
		return nil, fmt.Errorf("intent table %s: unsupported format (want .yaml or .csv)", path)
	}
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return nil
}

// readCSV returns each data row keyed by column name. When the first row
// does not name any of the expected columns it is treated as data and the
// expected order is used positionally.
func readCSV(path string, columns []string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		header []string
		rows   []map[string]string
	)
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot parse %s line %d: %w", path, line, err)
		}
		if header == nil {
			if isHeader(rec, columns) {
				header = normalizeHeader(rec)
				continue
			}
			header = columns
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isHeader(rec, columns []string) bool {
	for _, cell := range normalizeHeader(rec) {
		for _, c := range columns {
			if cell == c {
				return true
			}
		}
	}
	return false
}

func normalizeHeader(rec []string) []string {
	out := make([]string, len(rec))
	for i, cell := range rec {
		cell = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		out[i] = strings.ReplaceAll(cell, " ", "_")
	}
	return out
}

// resolveRef makes relative file catalog references relative to the table's directory.
func resolveRef(base, ref string) string {
	if ref == "" || strings.Contains(ref, "://") || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(base, ref)
}
