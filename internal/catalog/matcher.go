// Package catalog looks up tenant products mentioned in a message.
package catalog

import (
	"strings"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

// MaxMatches bounds how many products a single reply lists.
const MaxMatches = 2

// MoreInvitation closes every catalog reply.
const MoreInvitation = "Would you like to see more products?"

// Match returns at most MaxMatches entries, in catalog order.
//
// The exact pass keeps entries whose description appears verbatim in the
// text. Only when it finds nothing does the fuzzy pass run, keeping entries
// whose description contains any whitespace-delimited token of the text.
func Match(text string, entries []domain.CatalogEntry) []domain.CatalogEntry {
	if matches := MatchExact(text, entries); len(matches) > 0 {
		return matches
	}

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return nil
	}
	return collect(entries, func(desc string) bool {
		for _, tok := range tokens {
			if strings.Contains(desc, tok) {
				return true
			}
		}
		return false
	})
}

// MatchExact runs only the exact pass of Match.
func MatchExact(text string, entries []domain.CatalogEntry) []domain.CatalogEntry {
	lower := strings.ToLower(text)
	return collect(entries, func(desc string) bool {
		return strings.Contains(lower, desc)
	})
}

func collect(entries []domain.CatalogEntry, keep func(desc string) bool) []domain.CatalogEntry {
	var out []domain.CatalogEntry
	for _, e := range entries {
		desc := strings.ToLower(strings.TrimSpace(e.Description))
		if desc == "" || !keep(desc) {
			continue
		}
		out = append(out, e)
		if len(out) == MaxMatches {
			break
		}
	}
	return out
}

// Format renders matches as "<description>: <link>" lines followed by an
// invitation to browse further. It returns "" for no matches.
func Format(matches []domain.CatalogEntry) string {
	if len(matches) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m.Description)
		sb.WriteString(": ")
		sb.WriteString(m.Link)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(MoreInvitation)
	return sb.String()
}
