package intent

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

var testRules = []domain.IntentRule{
	{Mode: domain.ModeBuy, Keywords: []string{"buy", "order", "gift", "hoodie"}},
	{Mode: domain.ModeCatalog, Keywords: []string{"price", "candle"}},
	{Mode: "poem", Keywords: []string{"poem"}, Prompt: "Answer with a short poem."},
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// "gift" (rule 1) and "price" (rule 2) both match; declaration order decides.
	assert.Equal(t, domain.ModeBuy, Classify("What is the price of this gift?", testRules))
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, domain.ModeBuy, Classify("I want to BUY a gift", testRules))
	assert.Equal(t, domain.ModeCatalog, Classify("Tell me about the Memorial CANDLE", testRules))
}

func TestClassify_Substring(t *testing.T) {
	// Containment, not word matching: "ordering" contains "order".
	assert.Equal(t, domain.ModeBuy, Classify("ordering now", testRules))
}

func TestClassify_Fallback(t *testing.T) {
	assert.Equal(t, domain.ModeChat, Classify("I miss my grandmother", testRules))
	assert.Equal(t, domain.ModeChat, Classify("", testRules))
	assert.Equal(t, domain.ModeChat, Classify("anything", nil))
}

func TestClassify_CustomMode(t *testing.T) {
	assert.Equal(t, "poem", Classify("write me a poem", testRules))
}

func TestClassify_Idempotent(t *testing.T) {
	for _, text := range []string{"order a hoodie", "hello", "price?", ""} {
		assert.Equal(t, Classify(text, testRules), Classify(text, testRules), text)
	}
}

func TestClassify_ResultIsRuleOrFallback(t *testing.T) {
	modes := map[string]bool{domain.ModeChat: true}
	for _, r := range testRules {
		modes[r.Mode] = true
	}
	for _, text := range []string{"buy", "xyz", "🙂", "CANDLE price order", "p o e m", "\x00"} {
		assert.True(t, modes[Classify(text, testRules)], text)
	}
}

func TestMeaningless(t *testing.T) {
	cases := map[string]bool{
		"":         true,
		" ":        true,
		"a":        true,
		"?!":       true,
		"🙂🙂":       true,
		"  . ":     true,
		"hi":       false,
		"ok!":      false,
		"42":       false,
		"xin chào": false,
	}
	for text, want := range cases {
		assert.Equal(t, want, Meaningless(text), "%q", text)
	}
}

func TestClassifier_MeaninglessIsFallback(t *testing.T) {
	c := NewClassifier([]domain.IntentRule{{Mode: "dots", Keywords: []string{"..."}}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, domain.ModeChat, c.Classify("..."))
	assert.Equal(t, "dots", c.Classify("hmm..."))

	r, ok := c.Rule("dots")
	assert.True(t, ok)
	assert.Equal(t, []string{"..."}, r.Keywords)

	_, ok = c.Rule("missing")
	assert.False(t, ok)
}
