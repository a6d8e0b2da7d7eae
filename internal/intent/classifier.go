// Package intent maps free-text messages to mode keys using an ordered
// keyword table.
package intent

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

// Classify returns the mode of the first rule, in declaration order, that has
// a keyword contained in the lower-cased text. Text that no rule claims
// resolves to domain.ModeChat. Keywords are expected to be lower-case already
// (config.NewStore normalises them).
func Classify(text string, rules []domain.IntentRule) string {
	lower := strings.ToLower(text)
	if lower == "" {
		return domain.ModeChat
	}
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return r.Mode
			}
		}
	}
	return domain.ModeChat
}

// Meaningless reports whether text carries nothing worth answering:
// fewer than two characters, or no letters or digits at all.
func Meaningless(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 2 {
		return true
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Classifier binds an intent table to a logger for use on the request path.
type Classifier struct {
	rules  []domain.IntentRule
	logger *slog.Logger
}

func NewClassifier(rules []domain.IntentRule, logger *slog.Logger) *Classifier {
	return &Classifier{rules: rules, logger: logger}
}

// Classify returns the mode for text. Meaningless text always maps to the
// fallback mode so it can never select a keyword-driven reply.
func (c *Classifier) Classify(text string) string {
	if Meaningless(text) {
		return domain.ModeChat
	}
	mode := Classify(text, c.rules)
	c.logger.Debug("intent classified", "mode", mode, "text_len", len(text))
	return mode
}

// Rule returns the rule for mode, if the table declares one.
func (c *Classifier) Rule(mode string) (domain.IntentRule, bool) {
	for _, r := range c.rules {
		if r.Mode == mode {
			return r, true
		}
	}
	return domain.IntentRule{}, false
}
