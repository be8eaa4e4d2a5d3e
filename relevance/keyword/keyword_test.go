package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  string
	}{
		{text: "", out: ""},
		{text: "We're HIRING!", out: "we re hiring"},
		{text: "Gdańsk  café", out: "gdansk cafe"},
		{text: "  #opentowork  ", out: "opentowork"},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, Normalize(fix.text))
	}
}

func TestTokenize(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, โลก!", out: []string{"hello", "โลก"}},
		{text: "Senior Data-Scientist (Python)", out: []string{"senior", "data", "scientist", "python"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, Tokenize(fix.text))
	}
}

func TestTokenSet(t *testing.T) {
	assert := assert.New(t)

	set := TokenSet([]string{"Machine Learning", "Python", "ML"})
	for _, tok := range []string{"machine", "learning", "python", "ml"} {
		_, ok := set[tok]
		assert.True(ok, "expected %q in set", tok)
	}
	_, ok := set["java"]
	assert.False(ok)
}

func TestContainsPhrase(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text   string
		phrase string
		match  bool
	}{
		{text: "we are hiring a data scientist", phrase: "hiring", match: true},
		{text: "we are hiring a data scientist", phrase: "job opening", match: false},
		{text: "new job opening on our team", phrase: "job opening", match: true},
		{text: "rehiring freeze announced", phrase: "hiring", match: false},
		{text: "hiring", phrase: "hiring", match: true},
		{text: "", phrase: "hiring", match: false},
		{text: "the future of work", phrase: "future", match: true},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.match, ContainsPhrase(Normalize(fix.text), fix.phrase), "text=%q phrase=%q", fix.text, fix.phrase)
	}
}
