package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

const defaultTable = "catalog"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads a catalog from its reference:
//
//	path/to/catalog.csv                 description,link rows (header optional)
//	path/to/catalog.yaml                list of {description, link}
//	sqlite:///abs/path.db?table=name    description and link columns, rowid order
func Load(ctx context.Context, ref string) ([]domain.CatalogEntry, error) {
	if strings.HasPrefix(ref, "sqlite://") {
		return loadSQLite(ctx, ref)
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".csv":
		return loadCSV(ref)
	case ".yaml", ".yml":
		return loadYAML(ref)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported reference", ref)
	}
}

func loadCSV(path string) ([]domain.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var entries []domain.CatalogEntry
	for first := true; ; first = false {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if len(rec) < 2 {
			continue
		}
		if first && strings.EqualFold(strings.TrimSpace(rec[0]), "description") {
			continue
		}
		entries = append(entries, domain.CatalogEntry{
			Description: strings.TrimSpace(rec[0]),
			Link:        strings.TrimSpace(rec[1]),
		})
	}
	return entries, nil
}

func loadYAML(path string) ([]domain.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	var entries []domain.CatalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return entries, nil
}

func loadSQLite(ctx context.Context, ref string) ([]domain.CatalogEntry, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse catalog ref: %w", err)
	}
	dbPath := u.Host + u.Path
	if dbPath == "" {
		return nil, fmt.Errorf("catalog %s: missing database path", ref)
	}
	table := u.Query().Get("table")
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("catalog %s: invalid table name %q", ref, table)
	}

	// The catalog is never written, and a missing file must not be created.
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx,
		`SELECT description, link FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		var desc, link sql.NullString
		if err := rows.Scan(&desc, &link); err != nil {
			return nil, err
		}
		entries = append(entries, domain.CatalogEntry{Description: desc.String, Link: link.String})
	}
	return entries, rows.Err()
}
