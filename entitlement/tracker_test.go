package entitlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/quill/api"
	"github.com/quillworks/quill/entitlement/countstore"
)

type entitlementBackend struct {
	mu     sync.Mutex
	calls  int
	reject int // non-zero status code rejects every call
	stats  api.SubscriptionStats
}

func (b *entitlementBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls++

		if b.reject != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(b.reject)
			json.NewEncoder(w).Encode(api.ErrorBody{Code: "subscription_required"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/subscription/limits":
			json.NewEncoder(w).Encode(b.stats.SubscriptionLimits)
		case "/subscription/usage":
			json.NewEncoder(w).Encode(b.stats.SubscriptionUsage)
		case "/subscription/stats":
			json.NewEncoder(w).Encode(b.stats)
		default:
			http.NotFound(w, r)
		}
	})
}

func (b *entitlementBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *entitlementBackend) setUsage(daily, monthly int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.DailyUsage = daily
	b.stats.MonthlyUsage = monthly
}

// spyCounts records fallback counter reads so tests can assert the
// fallback was, or was not, consulted.
type spyCounts struct {
	*countstore.MemCountStore
	reads atomic.Int32
}

func newSpyCounts() *spyCounts {
	return &spyCounts{MemCountStore: countstore.NewMemCountStore()}
}

func (s *spyCounts) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.reads.Add(1)
	return s.MemCountStore.GetCount(ctx, name, val, period)
}

func paidStats(dailyUsed, monthlyUsed int) api.SubscriptionStats {
	return api.SubscriptionStats{
		SubscriptionLimits: api.SubscriptionLimits{
			Tier:         "paid",
			DailyLimit:   10,
			MonthlyLimit: 100,
		},
		SubscriptionUsage: api.SubscriptionUsage{
			DailyUsage:   dailyUsed,
			MonthlyUsage: monthlyUsed,
		},
	}
}

func TestWithinLimitsFreshState(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	backend := &entitlementBackend{stats: paidStats(5, 50)}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tr := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil)
	assert.True(tr.WithinLimits(ctx))
	assert.Equal(1, backend.callCount())

	// state is fresh; no refetch on the next check
	assert.True(tr.WithinLimits(ctx))
	assert.Equal(1, backend.callCount())
}

func TestWithinLimitsStrictBoundary(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	backend := &entitlementBackend{stats: paidStats(10, 50)}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tr := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil)
	assert.False(tr.WithinLimits(ctx), "usage equal to the ceiling leaves no headroom")

	backend.setUsage(9, 100)
	tr2 := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil)
	assert.False(tr2.WithinLimits(ctx), "monthly ceiling binds independently")
}

func TestWithinLimitsWarmupScaled(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	stats := api.SubscriptionStats{
		SubscriptionLimits: api.SubscriptionLimits{
			Tier:         "warmup",
			DailyLimit:   40,
			MonthlyLimit: 400,
			WarmupWeek:   intp(1),
		},
		SubscriptionUsage: api.SubscriptionUsage{DailyUsage: 9, MonthlyUsage: 9},
	}
	backend := &entitlementBackend{stats: stats}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	// force a refetch on every check so backend mutations are seen
	tr := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil, WithStaleAfter(0))
	assert.True(tr.WithinLimits(ctx), "9 of effective 10 leaves headroom")

	backend.setUsage(10, 10)
	assert.False(tr.WithinLimits(ctx), "effective ceiling is 10, not the nominal 40")
}

func TestWithinLimits402NoFallback(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	backend := &entitlementBackend{reject: http.StatusPaymentRequired}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	counts := newSpyCounts()
	tr := NewTracker(&api.Client{Host: srv.URL}, counts, nil)

	assert.False(tr.WithinLimits(ctx))
	assert.Equal(int32(0), counts.reads.Load(), "confirmed no-allowance must not consult fallback counters")

	// the flag is latched; no further fetch happens
	assert.False(tr.WithinLimits(ctx))
	assert.Equal(1, backend.callCount())
}

func TestWithinLimitsFallbackCaps(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	counts := countstore.NewMemCountStore()
	tr := NewTracker(&api.Client{Host: "http://127.0.0.1:1"}, counts, nil,
		WithFallbackCaps(3, 10))

	for i := 0; i < 3; i++ {
		assert.True(tr.WithinLimits(ctx), "action %d should fit the session cap", i)
		tr.RecordAction(ctx, "")
	}
	assert.False(tr.WithinLimits(ctx), "session cap reached")
}

func TestWithinLimitsFallbackDailyCap(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	tr := NewTracker(&api.Client{Host: "http://127.0.0.1:1"}, countstore.NewMemCountStore(), nil,
		WithFallbackCaps(10, 2))

	tr.RecordAction(ctx, "")
	assert.True(tr.WithinLimits(ctx))
	tr.RecordAction(ctx, "")
	assert.False(tr.WithinLimits(ctx), "daily cap binds before the session cap")
}

func TestRecordActionMirrorsUsage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	backend := &entitlementBackend{stats: paidStats(9, 50)}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tr := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil,
		WithStaleAfter(time.Hour))

	assert.True(tr.WithinLimits(ctx))
	tr.RecordAction(ctx, "post-1")
	assert.False(tr.WithinLimits(ctx), "local mirror consumed the last daily unit")
	assert.Equal(1, backend.callCount(), "no refetch was needed to see it")
}

func TestConfirmNoAllowanceLatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	backend := &entitlementBackend{stats: paidStats(0, 0)}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tr := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil)
	assert.True(tr.WithinLimits(ctx))

	tr.ConfirmNoAllowance()
	assert.False(tr.WithinLimits(ctx))

	// a successful refresh means the backend sees allowance again
	require.NoError(tr.RefreshStats(ctx))
	assert.True(tr.WithinLimits(ctx))
}

func TestRefreshEndpointsSplit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	backend := &entitlementBackend{stats: paidStats(3, 30)}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tr := NewTracker(&api.Client{Host: srv.URL}, countstore.NewMemCountStore(), nil)
	require.NoError(tr.RefreshLimits(ctx))
	require.NoError(tr.RefreshUsage(ctx))

	snap := tr.Snapshot(ctx)
	require.NotNil(snap.Limits)
	require.NotNil(snap.Usage)
	assert.Equal(TierPaid, snap.Limits.Tier)
	assert.Equal(10, snap.Limits.DailyLimit)
	assert.Equal(3, snap.Usage.DailyUsed)
}

func TestSnapshotCounters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	tr := NewTracker(&api.Client{Host: "http://127.0.0.1:1"}, countstore.NewMemCountStore(), nil)
	tr.RecordAction(ctx, "post-1")
	tr.RecordAction(ctx, "post-1")
	tr.RecordAction(ctx, "post-2")

	snap := tr.Snapshot(ctx)
	assert.Equal(3, snap.SessionActions)
	assert.Equal(3, snap.DailyActions)
	assert.Equal(2, snap.DistinctActed, "same item acted twice counts once")
	assert.False(snap.NoAllowance)
	assert.Nil(snap.Limits)
}
