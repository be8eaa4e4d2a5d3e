package relevance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Window identifies the recency filter the collector applied when it
// discovered a post. The decay curve applied by the decision gate depends
// on which window the post came from.
type Window int

const (
	WindowAny Window = iota
	WindowPastDay
	WindowPastWeek
	WindowPastMonth
)

func (w Window) String() string {
	switch w {
	case WindowPastDay:
		return "past-day"
	case WindowPastWeek:
		return "past-week"
	case WindowPastMonth:
		return "past-month"
	default:
		return "any"
	}
}

// ParseWindow maps collector filter strings to a Window. Accepts the
// hyphenated forms used in exported payloads plus a couple of aliases seen
// in the wild.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "all":
		return WindowAny, nil
	case "past-day", "past-24h", "day":
		return WindowPastDay, nil
	case "past-week", "week":
		return WindowPastWeek, nil
	case "past-month", "month":
		return WindowPastMonth, nil
	}
	return WindowAny, fmt.Errorf("unknown time window filter: %q", s)
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *Window) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseWindow(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Item is a single candidate post, as handed over by the collector.
// Immutable; consumed once per scoring pass.
type Item struct {
	// Post body text, as scraped. May be empty.
	Text string `json:"text"`
	// Display name of the post author, when the collector captured one.
	AuthorName string `json:"author_name,omitempty"`
	// Age of the post at evaluation time, in hours. Zero or negative means
	// "just posted".
	AgeHours float64 `json:"age_hours"`
	// Recency filter the post was discovered under.
	Window Window `json:"window"`
}

// Result carries the full scoring breakdown for one item. Transient and
// derived; never persisted.
type Result struct {
	Raw            float64 `json:"raw_score"`
	TimeMultiplier float64 `json:"time_multiplier"`
	Final          float64 `json:"final_score"`
	Act            bool    `json:"decision"`
}
