// Package engine wires relevance scoring, licensing, the session, and
// quota into the decision pipeline behind both the local HTTP API and the
// CLI.
//
// Gate order is load-bearing: an invalid license stops the run before any
// authenticated call is issued, a failed session refuses items, and no
// consuming action happens without a quota check passing first.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/quillworks/quill/api"
	"github.com/quillworks/quill/entitlement"
	"github.com/quillworks/quill/entitlement/countstore"
	"github.com/quillworks/quill/license"
	"github.com/quillworks/quill/pkg/robusthttp"
	"github.com/quillworks/quill/relevance"
	"github.com/quillworks/quill/relevance/keyword"
	"github.com/quillworks/quill/session"
)

// ErrNotReady means Startup has not completed, or the session is in a
// terminal state. No items are processed either way.
var ErrNotReady = errors.New("engine not ready")

// Verdict skip reasons.
const (
	SkipDuplicate = "duplicate"
	SkipScore     = "below_threshold"
	SkipQuota     = "quota"
	SkipPacing    = "pacing"
)

// Verdict is the pipeline's answer for one item.
type Verdict struct {
	Item        relevance.Item   `json:"item"`
	Score       relevance.Result `json:"score"`
	Acted       bool             `json:"acted"`
	SkipReason  string           `json:"skip_reason,omitempty"`
	CommentText string           `json:"comment_text,omitempty"`
}

type Option func(*Engine)

// WithHTTPClients overrides the transport clients, mainly so tests can
// drop the retry/backoff layer.
func WithHTTPClients(base, action *http.Client) Option {
	return func(e *Engine) {
		e.baseHTTP = base
		e.actionHTTP = action
	}
}

type Engine struct {
	logger *slog.Logger
	cfg    Config

	baseHTTP    *http.Client
	actionHTTP  *http.Client
	scorer      *relevance.Scorer
	sessionAuth *session.Authenticator
	licenses    *license.Validator
	quota       *entitlement.Tracker
	actions     *api.Client

	limiter      *rate.Limiter
	actionWindow *slidingwindow.Limiter
	seen         *expirable.LRU[string, time.Time]

	mu            sync.Mutex
	started       bool
	licenseStatus *license.Status
}

func New(cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		logger: logger.With("subsystem", "engine"),
		cfg:    cfg,
	}
	for _, o := range opts {
		o(e)
	}
	if e.baseHTTP == nil {
		e.baseHTTP = robusthttp.NewInteractiveClient(robusthttp.WithLogger(logger))
	}
	if e.actionHTTP == nil {
		e.actionHTTP = robusthttp.NewClient(robusthttp.WithLogger(logger))
	}

	// the plain client serves the unauthenticated endpoints (token issue,
	// license); authed clients share one bearer session
	plain := &api.Client{HTTPClient: e.baseHTTP, Host: cfg.Host, UserAgent: userAgent}
	e.sessionAuth = session.NewAuthenticator(plain, cfg.Email, cfg.Password, logger)
	authed := &api.Client{HTTPClient: e.baseHTTP, Host: cfg.Host, UserAgent: userAgent, Auth: e.sessionAuth}
	e.actions = &api.Client{HTTPClient: e.actionHTTP, Host: cfg.Host, UserAgent: userAgent, Auth: e.sessionAuth}

	store, err := licenseStore(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	e.licenses = license.NewValidator(plain, store, logger)

	counts, err := newCountStore(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting counter store: %w", err)
	}
	e.quota = entitlement.NewTracker(authed, counts, logger,
		entitlement.WithFallbackCaps(cfg.SessionCap, cfg.DailyCap))

	e.scorer = relevance.NewScorer(cfg.Interests)
	e.limiter = rate.NewLimiter(rate.Every(cfg.ActionSpacing), 1)
	e.actionWindow, _ = slidingwindow.NewLimiter(time.Hour, int64(cfg.ActionsPerHour), func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return slidingwindow.NewLocalWindow()
	})
	e.seen = expirable.NewLRU[string, time.Time](cfg.DedupeSize, nil, cfg.DedupeTTL)

	return e, nil
}

func licenseStore(path string) (*license.Store, error) {
	if path != "" {
		return license.NewStore(path), nil
	}
	return license.DefaultStore()
}

func newCountStore(redisURL string) (countstore.CountStore, error) {
	if redisURL != "" {
		return countstore.NewRedisCountStore(redisURL)
	}
	return countstore.NewMemCountStore(), nil
}

// Startup brings the engine to readiness: license first (an invalid
// license means no authenticated call is ever issued), then login, then a
// best-effort quota fetch.
func (e *Engine) Startup(ctx context.Context) error {
	st, err := e.licenses.Validate(ctx, e.cfg.LicenseKey)
	e.mu.Lock()
	e.licenseStatus = st
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("license check failed: %w", err)
	}
	if st.Offline {
		e.logger.Warn("license accepted offline", "reason", st.Reason)
	}

	if err := e.sessionAuth.Login(ctx); err != nil {
		return err
	}

	if err := e.quota.RefreshStats(ctx); err != nil {
		if api.IsNoAllowance(err) {
			e.logger.Warn("subscription has no allowance; items will not trigger actions")
		} else {
			e.logger.Warn("quota fetch failed, starting in fallback mode", "err", err)
		}
	}

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	e.logger.Info("engine ready", "min_score", e.cfg.MinScore, "interests", len(e.cfg.Interests))
	return nil
}

// ProcessItem runs one item through the pipeline. Skips come back as
// verdicts, not errors; an error means the item was not decided (terminal
// session state, cancellation, or a failed consuming call whose quota was
// not spent).
func (e *Engine) ProcessItem(ctx context.Context, item relevance.Item) (*Verdict, error) {
	start := time.Now()
	defer func() {
		decisionDuration.Observe(time.Since(start).Seconds())
	}()
	itemsProcessed.Inc()

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		verdictCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: startup has not completed", ErrNotReady)
	}
	if !e.sessionAuth.Ready() {
		verdictCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: session is %s", ErrNotReady, e.sessionAuth.State())
	}

	key := itemKey(item)
	if _, dup := e.seen.Get(key); dup {
		verdictCount.WithLabelValues(SkipDuplicate).Inc()
		return &Verdict{Item: item, SkipReason: SkipDuplicate}, nil
	}

	res := relevance.Decide(item, e.scorer.Score(item), e.cfg.MinScore)
	v := &Verdict{Item: item, Score: res}
	if !res.Act {
		// a stable outcome; remember it so resubmissions are cheap
		e.seen.Add(key, time.Now())
		verdictCount.WithLabelValues(SkipScore).Inc()
		return v, nil
	}

	if !e.quota.WithinLimits(ctx) {
		v.SkipReason = SkipQuota
		verdictCount.WithLabelValues(SkipQuota).Inc()
		return v, nil
	}
	if !e.actionWindow.Allow() {
		v.SkipReason = SkipPacing
		verdictCount.WithLabelValues(SkipPacing).Inc()
		return v, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			verdictCount.WithLabelValues("error").Inc()
			return nil, ctx.Err()
		}
		// the caller's deadline is shorter than the pacing gap
		v.SkipReason = SkipPacing
		verdictCount.WithLabelValues(SkipPacing).Inc()
		return v, nil
	}

	out, err := api.GenerateComment(ctx, e.actions, &api.CommentInput{
		PostText:   item.Text,
		AuthorName: item.AuthorName,
	})
	if err != nil {
		if api.IsNoAllowance(err) {
			e.quota.ConfirmNoAllowance()
			actionFailures.WithLabelValues("no_allowance").Inc()
			v.SkipReason = SkipQuota
			verdictCount.WithLabelValues(SkipQuota).Inc()
			return v, nil
		}
		actionFailures.WithLabelValues("transient").Inc()
		verdictCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generating comment: %w", err)
	}

	e.seen.Add(key, time.Now())
	e.quota.RecordAction(ctx, key)
	v.Acted = true
	v.CommentText = out.Comment
	verdictCount.WithLabelValues("acted").Inc()
	e.logger.Info("acted on item", "score", res.Final, "author", item.AuthorName)
	return v, nil
}

// Status reports the state of every gate, for the status endpoint and CLI.
type Status struct {
	Session session.Info         `json:"session"`
	License *license.Status      `json:"license,omitempty"`
	Quota   entitlement.Snapshot `json:"quota"`
}

func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	lic := e.licenseStatus
	e.mu.Unlock()
	return Status{
		Session: e.sessionAuth.Snapshot(),
		License: lic,
		Quota:   e.quota.Snapshot(ctx),
	}
}

// Ready mirrors ProcessItem's admission check, for health endpoints.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	return started && e.sessionAuth.Ready()
}

// RefreshQuotaLoop keeps the quota cache warm until the context ends.
func (e *Engine) RefreshQuotaLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.quota.RefreshStats(ctx); err != nil {
				e.logger.Debug("periodic quota refresh failed", "err", err)
			}
		}
	}
}

// itemKey collapses trivial variations (case, punctuation, spacing) so a
// recollected post dedupes against the version already decided.
func itemKey(item relevance.Item) string {
	norm := keyword.Normalize(item.AuthorName) + "|" + keyword.Normalize(item.Text)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:16]
}

const userAgent = "quill"
