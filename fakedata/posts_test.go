package fakedata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/quill/relevance"
)

var testInterests = []string{"python", "machine learning"}

func TestGenHiringPostScoresPositive(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	scorer := relevance.NewScorer(testInterests)
	for i := 0; i < 50; i++ {
		p := GenHiringPost(testInterests)
		item, err := p.Item()
		require.NoError(err)
		assert.Greater(scorer.Score(item), 0.0, "text: %q", p.Text)
	}
}

func TestGenNoisePostNeverScoresPositive(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	scorer := relevance.NewScorer(testInterests)
	for i := 0; i < 50; i++ {
		p := GenNoisePost()
		item, err := p.Item()
		require.NoError(err)
		assert.LessOrEqual(scorer.Score(item), 0.0, "text: %q", p.Text)
	}
}

func TestGenPostsShape(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	posts := GenPosts(200, 0.5, testInterests)
	require.Len(posts, 200)
	for _, p := range posts {
		assert.NotEmpty(p.Text)
		assert.GreaterOrEqual(p.AgeHours, 0.0)
		assert.LessOrEqual(p.AgeHours, 720.0)
		_, err := relevance.ParseWindow(p.Window)
		require.NoError(err, "window: %q", p.Window)
	}
}

// Field names are load-bearing: saved batches must replay through eval,
// which decodes the collector's export schema.
func TestPostJSONFieldNames(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, err := json.Marshal(Post{Text: "t", AuthorName: "a", AgeHours: 2, Window: "past-day"})
	require.NoError(err)

	var m map[string]any
	require.NoError(json.Unmarshal(b, &m))
	assert.Contains(m, "text")
	assert.Contains(m, "author_name")
	assert.Contains(m, "age_hours")
	assert.Contains(m, "window")
}
