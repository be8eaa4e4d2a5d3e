// Package fakedata generates synthetic collector exports: posts shaped
// like the content quill evaluates in production. Intended for development,
// benchmarks, and `quill eval --generate`.
package fakedata

import (
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/quillworks/quill/relevance"
)

// Post mirrors one entry of a collector export file. Field names match the
// JSON the collector writes, so generated batches can be saved to disk and
// replayed through eval later.
type Post struct {
	Text       string  `json:"text"`
	AuthorName string  `json:"author_name,omitempty"`
	AgeHours   float64 `json:"age_hours"`
	Window     string  `json:"window"`
}

// Item converts the post to the scorer's input form.
func (p Post) Item() (relevance.Item, error) {
	w, err := relevance.ParseWindow(p.Window)
	if err != nil {
		return relevance.Item{}, err
	}
	return relevance.Item{
		Text:       p.Text,
		AuthorName: p.AuthorName,
		AgeHours:   p.AgeHours,
		Window:     w,
	}, nil
}

// All hiring templates take (job title, company, skill), indexed so each
// template can order them freely.
var hiringTemplates = []string{
	"We are hiring a %[1]s at %[2]s! %[3]s experience required. Apply now.",
	"%[2]s has an open role for a %[1]s. We're looking for strong %[3]s skills.",
	"Join our team at %[2]s: now recruiting a %[1]s. A %[3]s background is a big plus.",
	"Open position: %[1]s. %[2]s is growing fast and we need %[3]s expertise. DM me!",
	"Job opening at %[2]s. Seeking a %[1]s who knows %[3]s inside out.",
}

// Noise templates take two topic slots and read like the broadcast
// thought-leadership content the scorer is supposed to penalize.
var noiseTemplates = []string{
	"Hot take: %[1]s is transforming the %[2]s industry. Thoughts?",
	"We are entering a new era of %[1]s. The future of %[2]s is already here.",
	"%[1]s will be the biggest disruption to %[2]s this decade. Agree?",
	"Some thought leadership on %[1]s: automation changes everything about %[2]s.",
	"Stop sleeping on %[1]s. It is a complete paradigm shift for %[2]s.",
}

// GenPosts produces count synthetic posts. fracHiring of them (in
// expectation) carry real hiring intent built around the given interest
// keywords; the rest are engagement-bait noise.
func GenPosts(count int, fracHiring float64, interests []string) []Post {
	posts := make([]Post, 0, count)
	for i := 0; i < count; i++ {
		if rand.Float64() < fracHiring {
			posts = append(posts, GenHiringPost(interests))
		} else {
			posts = append(posts, GenNoisePost())
		}
	}
	return posts
}

// GenHiringPost produces a post with genuine hiring intent. When interests
// are provided one of them is worked into the required-skills slot, so the
// post also picks up interest-keyword matches during scoring.
func GenHiringPost(interests []string) Post {
	skill := gofakeit.BuzzWord()
	if len(interests) > 0 {
		skill = interests[rand.Intn(len(interests))]
	}
	tmpl := hiringTemplates[rand.Intn(len(hiringTemplates))]
	text := fmt.Sprintf(tmpl, gofakeit.JobTitle(), gofakeit.Company(), skill)
	window, age := windowAge()
	return Post{
		Text:       text,
		AuthorName: maybeName(),
		AgeHours:   age,
		Window:     window,
	}
}

// GenNoisePost produces a broadcast-style post with no hiring intent.
func GenNoisePost() Post {
	tmpl := noiseTemplates[rand.Intn(len(noiseTemplates))]
	text := fmt.Sprintf(tmpl, gofakeit.BuzzWord(), gofakeit.BS())
	window, age := windowAge()
	return Post{
		Text:       text,
		AuthorName: maybeName(),
		AgeHours:   age,
		Window:     window,
	}
}

// windowAge picks a discovery window and a plausible age inside it.
func windowAge() (string, float64) {
	switch rand.Intn(3) {
	case 0:
		return "past-day", rand.Float64() * 24
	case 1:
		return "past-week", 24 + rand.Float64()*144
	default:
		return "past-month", 168 + rand.Float64()*552
	}
}

// Collectors miss the display name now and then.
func maybeName() string {
	if rand.Float64() < 0.1 {
		return ""
	}
	return gofakeit.Name()
}
