// Package keyword holds text normalization and matching helpers for the
// relevance scorer.
//
// Post text arrives from the collector as free-form unicode (often pasted
// from a browser), so matching happens on a normalized form: lower-cased,
// with combining marks folded away. The intent is similar to an NLP
// tokenizer as used by a fulltext search engine: fast membership checks
// against small keyword tables, not linguistic analysis.
package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
	spaceRuns     = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases text, strips diacritics (NFD, remove combining
// marks, NFC), replaces punctuation with spaces, and collapses whitespace
// runs. Phrase matching happens against this form.
func Normalize(text string) string {
	// the transform chain must be constructed per call; norm transformers
	// carry internal state and are not safe for reuse across goroutines
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	spaced := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, spaced)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = spaced
	}
	return strings.TrimSpace(spaceRuns.ReplaceAllString(folded, " "))
}

// Tokenize splits free-form text into normalized tokens.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// TokenSet builds a membership set from a token list, normalizing each
// entry. Multi-word entries contribute each of their words.
func TokenSet(toks []string) map[string]struct{} {
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		for _, w := range Tokenize(t) {
			set[w] = struct{}{}
		}
	}
	return set
}

// ContainsPhrase reports whether a normalized phrase occurs in
// already-normalized text, on token boundaries. "hiring" matches
// "we are hiring" but not "unhiring".
func ContainsPhrase(normText, phrase string) bool {
	if normText == "" || phrase == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(normText[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || normText[start-1] == ' '
		afterOK := end == len(normText) || normText[end] == ' '
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}
