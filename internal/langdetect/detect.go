// Package langdetect guesses the language of short chat messages.
//
// The guess is a heuristic over scripts, diacritics and common function
// words. It is good enough to pick a reply language and nothing more.
package langdetect

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// MinLength is the shortest text (in characters) worth guessing at.
const MinLength = 5

type Config struct {
	Default   string   // returned whenever the guess is unusable
	Allowed   []string // languages the bot answers in
	Overrides []string // lower-case prefixes that force Default
}

// Detector maps text to a language code from a fixed allow-list.
type Detector struct {
	def       string
	allowed   map[string]bool
	overrides []string
}

func New(cfg Config) *Detector {
	if cfg.Default == "" {
		cfg.Default = "en"
	}
	allowed := make(map[string]bool, len(cfg.Allowed)+1)
	allowed[cfg.Default] = true
	for _, l := range cfg.Allowed {
		allowed[strings.ToLower(l)] = true
	}
	overrides := make([]string, 0, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			overrides = append(overrides, o)
		}
	}
	return &Detector{def: cfg.Default, allowed: allowed, overrides: overrides}
}

// Default returns the fallback language code.
func (d *Detector) Default() string { return d.def }

// Detect returns the language code to reply in.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinLength {
		return d.def
	}
	lower := strings.ToLower(text)
	for _, o := range d.overrides {
		if strings.HasPrefix(lower, o) {
			return d.def
		}
	}
	if lang := Guess(lower); d.allowed[lang] {
		return lang
	}
	return d.def
}

// Name returns the English name of a language code ("vi" -> "Vietnamese").
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

var scripts = []struct {
	table *unicode.RangeTable
	lang  string
}{
	{unicode.Hangul, "ko"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Han, "zh"},
	{unicode.Thai, "th"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Hebrew, "he"},
	{unicode.Greek, "el"},
	{unicode.Devanagari, "hi"},
}

// vietnameseLetters are letters that occur in Vietnamese but not in the
// other Latin-script languages we score.
const vietnameseLetters = "ăđơưạảấầẩẫậắằẳẵặẹẻẽếềểễệỉịọỏốồổỗộớờởỡợụủứừửữựỳỵỷỹ"

var stopwords = map[string][]string{
	"en": {"the", "and", "you", "is", "are", "my", "to", "of", "what", "how", "want", "have", "this", "it", "me", "for", "with", "do", "can", "please", "miss"},
	"es": {"el", "la", "los", "las", "de", "que", "y", "es", "por", "para", "con", "mi", "quiero", "cómo", "qué", "hola", "gracias", "una", "un", "está", "estás"},
	"fr": {"le", "la", "les", "de", "des", "et", "est", "je", "tu", "vous", "pour", "avec", "mon", "ma", "suis", "bonjour", "merci", "une", "un", "très", "pas"},
	"de": {"der", "die", "das", "und", "ist", "ich", "du", "nicht", "mit", "mein", "meine", "ein", "eine", "hallo", "danke", "bitte", "wie", "was", "sehr"},
	"pt": {"o", "os", "as", "de", "que", "e", "é", "não", "para", "com", "meu", "minha", "eu", "você", "olá", "obrigado", "obrigada", "um", "uma", "muito"},
	"it": {"il", "lo", "gli", "di", "che", "è", "non", "per", "con", "mio", "mia", "io", "ciao", "grazie", "sono", "molto"},
	"id": {"yang", "dan", "di", "saya", "aku", "tidak", "ini", "itu", "dengan", "untuk", "apa", "terima", "kasih"},
	"vi": {"tôi", "bạn", "không", "là", "của", "và", "có", "em", "anh", "chị", "mẹ", "cho", "xin", "chào", "cảm", "ơn"},
}

var markers = map[rune]string{
	'ñ': "es", '¿': "es", '¡': "es",
	'ç': "fr", 'è': "fr", 'ë': "fr", 'î': "fr", 'œ': "fr",
	'ß': "de", 'ä': "de", 'ö': "de", 'ü': "de",
	'ã': "pt", 'õ': "pt",
}

// Guess returns a best-effort language code for lower-cased text, or ""
// when nothing stands out.
func Guess(lower string) string {
	var letters, latin int
	counts := make(map[string]int)
	scores := make(map[string]int)

	for _, r := range lower {
		if !unicode.IsLetter(r) {
			if lang, ok := markers[r]; ok {
				scores[lang] += 2
			}
			continue
		}
		letters++
		if strings.ContainsRune(vietnameseLetters, r) {
			scores["vi"] += 3
		}
		if lang, ok := markers[r]; ok {
			scores[lang] += 2
		}
		if unicode.Is(unicode.Latin, r) {
			latin++
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[s.lang]++
				break
			}
		}
	}
	if letters == 0 {
		return ""
	}

	// A non-Latin script that covers a third of the letters decides outright.
	best, bestCount := "", 0
	for lang, n := range counts {
		if n > bestCount || (n == bestCount && lang < best) {
			best, bestCount = lang, n
		}
	}
	if bestCount*3 >= letters && bestCount >= latin {
		return best
	}

	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		for lang, words := range stopwords {
			for _, w := range words {
				if word == w {
					scores[lang]++
					break
				}
			}
		}
	}

	best, bestScore := "", 0
	for lang, n := range scores {
		if n > bestScore || (n == bestScore && lang < best) {
			best, bestScore = lang, n
		}
	}
	return best
}
