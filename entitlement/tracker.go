// Package entitlement tracks whether the account has quota left for
// another comment action.
//
// The backend is the source of truth: tier limits (with warmup scaling)
// and current usage come from the subscription endpoints. When the backend
// cannot answer, the tracker degrades to conservative in-process caps fed
// by a countstore, so a backend outage slows the client down instead of
// stopping it. The one exception is a confirmed 402: that is the backend
// answering "no allowance", and no fallback applies.
package entitlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quillworks/quill/api"
	"github.com/quillworks/quill/entitlement/countstore"
)

const (
	defaultFallbackSessionCap = 20
	defaultFallbackDailyCap   = 50
	defaultStaleAfter         = 5 * time.Minute

	actionCounterName   = "actions"
	actionCounterVal    = "comment"
	distinctActedName   = "acted"
	distinctActedBucket = "items"
)

type Option func(*Tracker)

// WithFallbackCaps overrides the session/daily ceilings used when the
// entitlement service is unreachable.
func WithFallbackCaps(sessionCap, dailyCap int) Option {
	return func(t *Tracker) {
		t.sessionCap = sessionCap
		t.dailyCap = dailyCap
	}
}

// WithStaleAfter overrides how old fetched stats may get before
// WithinLimits refetches them.
func WithStaleAfter(d time.Duration) Option {
	return func(t *Tracker) {
		t.staleAfter = d
	}
}

type Tracker struct {
	client *api.Client
	counts countstore.CountStore
	logger *slog.Logger

	sessionCap int
	dailyCap   int
	staleAfter time.Duration
	now        func() time.Time

	mu          sync.Mutex
	limits      *Limits
	usage       *Usage
	fetchedAt   time.Time
	noAllowance bool
}

func NewTracker(client *api.Client, counts countstore.CountStore, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		client:     client,
		counts:     counts,
		logger:     logger.With("subsystem", "entitlement"),
		sessionCap: defaultFallbackSessionCap,
		dailyCap:   defaultFallbackDailyCap,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func limitsFromAPI(in *api.SubscriptionLimits) *Limits {
	return &Limits{
		Tier:          ParseTier(in.Tier),
		DailyLimit:    in.DailyLimit,
		MonthlyLimit:  in.MonthlyLimit,
		WarmupWeek:    in.WarmupWeek,
		WarmupPercent: in.WarmupPercentage,
	}
}

func (t *Tracker) RefreshLimits(ctx context.Context) error {
	out, err := api.GetSubscriptionLimits(ctx, t.client)
	if err != nil {
		return t.refreshFailed("limits", err)
	}
	t.mu.Lock()
	t.limits = limitsFromAPI(out)
	t.fetchedAt = t.now()
	t.noAllowance = false
	t.mu.Unlock()
	refreshCount.WithLabelValues("limits", "ok").Inc()
	return nil
}

func (t *Tracker) RefreshUsage(ctx context.Context) error {
	out, err := api.GetSubscriptionUsage(ctx, t.client, &api.UsageParams{})
	if err != nil {
		return t.refreshFailed("usage", err)
	}
	t.mu.Lock()
	t.usage = &Usage{DailyUsed: out.DailyUsage, MonthlyUsed: out.MonthlyUsage}
	t.fetchedAt = t.now()
	t.noAllowance = false
	t.mu.Unlock()
	refreshCount.WithLabelValues("usage", "ok").Inc()
	return nil
}

// RefreshStats pulls limits and usage in one call.
func (t *Tracker) RefreshStats(ctx context.Context) error {
	out, err := api.GetSubscriptionStats(ctx, t.client)
	if err != nil {
		return t.refreshFailed("stats", err)
	}
	t.mu.Lock()
	t.limits = limitsFromAPI(&out.SubscriptionLimits)
	t.usage = &Usage{DailyUsed: out.DailyUsage, MonthlyUsed: out.MonthlyUsage}
	t.fetchedAt = t.now()
	t.noAllowance = false
	t.mu.Unlock()
	refreshCount.WithLabelValues("stats", "ok").Inc()
	return nil
}

// refreshFailed records the failure and latches the no-allowance flag on a
// confirmed 402. Other failures leave prior state alone.
func (t *Tracker) refreshFailed(endpoint string, err error) error {
	if api.IsNoAllowance(err) {
		t.mu.Lock()
		t.noAllowance = true
		t.mu.Unlock()
		refreshCount.WithLabelValues(endpoint, "no_allowance").Inc()
		t.logger.Warn("subscription has no allowance", "endpoint", endpoint, "err", err)
		return err
	}
	refreshCount.WithLabelValues(endpoint, "error").Inc()
	return err
}

// WithinLimits reports whether another action fits the quota. It never
// errors: a confirmed no-allowance answer is false, fetched state is
// compared strictly against the (warmup-scaled) ceilings, and an
// unreachable entitlement service engages the fallback caps.
func (t *Tracker) WithinLimits(ctx context.Context) bool {
	t.mu.Lock()
	if t.noAllowance {
		t.mu.Unlock()
		checkCount.WithLabelValues("deny_no_allowance").Inc()
		return false
	}
	fresh := t.limits != nil && t.usage != nil && t.now().Sub(t.fetchedAt) <= t.staleAfter
	t.mu.Unlock()

	if !fresh {
		if err := t.RefreshStats(ctx); err != nil {
			if api.IsNoAllowance(err) {
				checkCount.WithLabelValues("deny_no_allowance").Inc()
				return false
			}
			t.logger.Warn("entitlement service unavailable, using fallback caps", "err", err)
			return t.withinFallback(ctx)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ok := t.usage.DailyUsed < t.limits.EffectiveDaily() &&
		t.usage.MonthlyUsed < t.limits.EffectiveMonthly()
	if ok {
		checkCount.WithLabelValues("ok").Inc()
	} else {
		checkCount.WithLabelValues("deny_limits").Inc()
	}
	return ok
}

// withinFallback compares in-process counters against the conservative
// caps. Counter read failures deny: degraded mode must not overshoot.
func (t *Tracker) withinFallback(ctx context.Context) bool {
	fallbackEngaged.Inc()

	session, err := t.counts.GetCount(ctx, actionCounterName, actionCounterVal, countstore.PeriodTotal)
	if err == nil {
		var day int
		day, err = t.counts.GetCount(ctx, actionCounterName, actionCounterVal, countstore.PeriodDay)
		if err == nil {
			ok := session < t.sessionCap && day < t.dailyCap
			if ok {
				checkCount.WithLabelValues("fallback_ok").Inc()
			} else {
				checkCount.WithLabelValues("fallback_deny").Inc()
			}
			return ok
		}
	}
	t.logger.Warn("fallback counters unavailable, denying action", "err", err)
	checkCount.WithLabelValues("fallback_error").Inc()
	return false
}

// RecordAction accounts one consumed action: countstore buckets, the
// distinct-item set, and the local usage mirror so quota keeps draining
// between refreshes.
func (t *Tracker) RecordAction(ctx context.Context, itemKey string) {
	if err := t.counts.Increment(ctx, actionCounterName, actionCounterVal); err != nil {
		t.logger.Warn("failed to bump action counter", "err", err)
	}
	if itemKey != "" {
		if err := t.counts.IncrementDistinct(ctx, distinctActedName, distinctActedBucket, itemKey); err != nil {
			t.logger.Warn("failed to bump distinct action counter", "err", err)
		}
	}

	t.mu.Lock()
	if t.usage != nil {
		t.usage.DailyUsed++
		t.usage.MonthlyUsed++
	}
	t.mu.Unlock()
	actionsRecorded.Inc()
}

// ConfirmNoAllowance latches the no-allowance state after a consuming call
// came back 402. Cleared by the next successful refresh.
func (t *Tracker) ConfirmNoAllowance() {
	t.mu.Lock()
	t.noAllowance = true
	t.mu.Unlock()
}

// Snapshot is a point-in-time quota view for status surfaces.
type Snapshot struct {
	Limits         *Limits   `json:"limits,omitempty"`
	Usage          *Usage    `json:"usage,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
	NoAllowance    bool      `json:"no_allowance"`
	SessionActions int       `json:"session_actions"`
	DailyActions   int       `json:"daily_actions"`
	DistinctActed  int       `json:"distinct_acted_today"`
}

func (t *Tracker) Snapshot(ctx context.Context) Snapshot {
	t.mu.Lock()
	snap := Snapshot{
		FetchedAt:   t.fetchedAt,
		NoAllowance: t.noAllowance,
	}
	if t.limits != nil {
		l := *t.limits
		snap.Limits = &l
	}
	if t.usage != nil {
		u := *t.usage
		snap.Usage = &u
	}
	t.mu.Unlock()

	// best effort; a countstore hiccup leaves the fields zero
	if n, err := t.counts.GetCount(ctx, actionCounterName, actionCounterVal, countstore.PeriodTotal); err == nil {
		snap.SessionActions = n
	}
	if n, err := t.counts.GetCount(ctx, actionCounterName, actionCounterVal, countstore.PeriodDay); err == nil {
		snap.DailyActions = n
	}
	if n, err := t.counts.GetCountDistinct(ctx, distinctActedName, distinctActedBucket, countstore.PeriodDay); err == nil {
		snap.DistinctActed = n
	}
	return snap
}
