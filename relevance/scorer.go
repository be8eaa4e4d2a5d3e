package relevance

import (
	"github.com/quillworks/quill/relevance/keyword"
)

// Scoring weights. The hiring-intent signal is deliberately the dominant
// term: without it a post can never accumulate a positive score, which is
// what keeps the engine from commenting on generic thought-leadership
// posts no matter how many interest keywords they happen to mention.
const (
	hiringWeight     = 12.0
	genericPenalty   = 3.0
	interestWeight   = 2.0
	interestMatchCap = 3
	authorBonus      = 0.5
)

// Phrases that signal an actual hiring post. Matched on token boundaries
// against normalized text, so "hiring" does not match "rehiring".
var hiringPhrases = []string{
	"hiring",
	"job opening",
	"job opportunity",
	"position available",
	"open position",
	"open role",
	"join our team",
	"we re looking for",
	"now recruiting",
	"apply now",
	"vacancy",
}

// Phrases that correlate with low-actionability broadcast content. Each
// distinct match subtracts from the score.
var genericPhrases = []string{
	"era of",
	"the future of",
	"future",
	"transforming",
	"transformation",
	"automation",
	"disruption",
	"paradigm",
	"thought leadership",
	"hot take",
}

// Scorer assigns a relevance score to candidate posts. Construct with
// NewScorer; the zero value scores everything at or below zero.
//
// Scoring is a pure function of the item: no clock, no I/O, no state
// mutation, so a Scorer is safe for concurrent use.
type Scorer struct {
	interests map[string]struct{}
}

// NewScorer builds a Scorer for the caller's configured interest keywords.
// Multi-word interests match on their individual words.
func NewScorer(interests []string) *Scorer {
	return &Scorer{interests: keyword.TokenSet(interests)}
}

// Score computes the raw relevance score for one item.
//
// Hiring intent gates all positive contributions: when no hiring phrase is
// present, interest and author signals are withheld and only penalties
// accumulate, so the result is <= 0 and the item can never clear a positive
// decision threshold.
func (s *Scorer) Score(item Item) float64 {
	norm := keyword.Normalize(item.Text)
	if norm == "" {
		return 0
	}

	hiring := false
	for _, p := range hiringPhrases {
		if keyword.ContainsPhrase(norm, p) {
			hiring = true
			break
		}
	}

	var score float64
	for _, p := range genericPhrases {
		if keyword.ContainsPhrase(norm, p) {
			score -= genericPenalty
		}
	}

	if !hiring {
		if score > 0 {
			score = 0
		}
		return score
	}

	score += hiringWeight

	matches := 0
	seen := make(map[string]struct{}, interestMatchCap)
	for _, tok := range keyword.Tokenize(item.Text) {
		if _, ok := s.interests[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		matches++
		if matches == interestMatchCap {
			break
		}
	}
	score += float64(matches) * interestWeight

	if item.AuthorName != "" {
		score += authorBonus
	}
	return score
}
