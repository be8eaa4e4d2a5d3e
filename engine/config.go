package engine

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrConfig marks configuration problems, surfaced before any network call.
var ErrConfig = errors.New("invalid configuration")

// Config is assembled once at startup and not mutated afterwards.
type Config struct {
	// backend + credentials
	Host       string
	Email      string
	Password   string
	LicenseKey string

	// relevance
	Interests []string
	MinScore  float64

	// StatePath overrides where the license record lives; empty means the
	// XDG state directory.
	StatePath string
	// RedisURL switches action counters to a shared Redis; empty keeps
	// them in process memory.
	RedisURL string

	// fallback quota caps for when the entitlement service is down;
	// zero picks the defaults
	SessionCap int
	DailyCap   int

	// action pacing
	ActionsPerHour int
	ActionSpacing  time.Duration

	// dedupe cache of recently evaluated items
	DedupeTTL  time.Duration
	DedupeSize int
}

const (
	defaultSessionCap     = 20
	defaultDailyCap       = 50
	defaultActionsPerHour = 10
	defaultActionSpacing  = 30 * time.Second
	defaultDedupeTTL      = 6 * time.Hour
	defaultDedupeSize     = 4096
)

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: backend host is required", ErrConfig)
	}
	u, err := url.Parse(c.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: backend host must be an http(s) URL, got %q", ErrConfig, c.Host)
	}
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("%w: account email and password are required", ErrConfig)
	}
	if c.MinScore <= 0 {
		return fmt.Errorf("%w: minimum score must be positive", ErrConfig)
	}
	if c.SessionCap < 0 || c.DailyCap < 0 {
		return fmt.Errorf("%w: fallback caps must not be negative", ErrConfig)
	}
	if c.ActionsPerHour < 0 {
		return fmt.Errorf("%w: actions per hour must not be negative", ErrConfig)
	}
	return nil
}

// withDefaults fills the zero-value knobs. Validation has already rejected
// negatives.
func (c Config) withDefaults() Config {
	if c.SessionCap == 0 {
		c.SessionCap = defaultSessionCap
	}
	if c.DailyCap == 0 {
		c.DailyCap = defaultDailyCap
	}
	if c.ActionsPerHour == 0 {
		c.ActionsPerHour = defaultActionsPerHour
	}
	if c.ActionSpacing == 0 {
		c.ActionSpacing = defaultActionSpacing
	}
	if c.DedupeTTL == 0 {
		c.DedupeTTL = defaultDedupeTTL
	}
	if c.DedupeSize == 0 {
		c.DedupeSize = defaultDedupeSize
	}
	return c
}
