package entitlement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func TestWarmupScaling(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		name    string
		limits  Limits
		daily   int
		monthly int
	}{
		{
			name:    "paid tier unscaled",
			limits:  Limits{Tier: TierPaid, DailyLimit: 40, MonthlyLimit: 400},
			daily:   40,
			monthly: 400,
		},
		{
			name:    "paid tier ignores stray warmup fields",
			limits:  Limits{Tier: TierPaid, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(1)},
			daily:   40,
			monthly: 400,
		},
		{
			name:    "warmup week one quarters the ceiling",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(1)},
			daily:   10,
			monthly: 100,
		},
		{
			name:    "warmup week two",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(2)},
			daily:   20,
			monthly: 200,
		},
		{
			name:    "warmup week three",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(3)},
			daily:   30,
			monthly: 300,
		},
		{
			name:    "warmup week four is full entitlement",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(4)},
			daily:   40,
			monthly: 400,
		},
		{
			name:    "warmup week nine stays full",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(9)},
			daily:   40,
			monthly: 400,
		},
		{
			name:    "served percentage wins over week curve",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupWeek: intp(1), WarmupPercent: floatp(60)},
			daily:   24,
			monthly: 240,
		},
		{
			// 30 at 25% is 7.5, 301 at 25% is 75.25; both round up
			name:    "fractional scaling rounds up",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 30, MonthlyLimit: 301, WarmupWeek: intp(1)},
			daily:   8,
			monthly: 76,
		},
		{
			name:    "warmup with no ramp fields runs at the floor",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400},
			daily:   10,
			monthly: 100,
		},
		{
			name:    "zero percent means zero allowance",
			limits:  Limits{Tier: TierWarmup, DailyLimit: 40, MonthlyLimit: 400, WarmupPercent: floatp(0)},
			daily:   0,
			monthly: 0,
		},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.daily, fix.limits.EffectiveDaily(), fix.name)
		assert.Equal(fix.monthly, fix.limits.EffectiveMonthly(), fix.name)
	}
}

func TestParseTier(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(TierFree, ParseTier("free"))
	assert.Equal(TierWarmup, ParseTier("Warmup"))
	assert.Equal(TierWarmup, ParseTier("warm-up"))
	assert.Equal(TierPaid, ParseTier("paid"))
	assert.Equal(TierPaid, ParseTier("premium"))
	assert.Equal(TierUnknown, ParseTier("enterprise-plus"))
	assert.Equal(TierUnknown, ParseTier(""))
}

func TestTierJSONTolerant(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var l Limits
	require.NoError(json.Unmarshal([]byte(`{"tier":"some-future-tier","daily_limit":5}`), &l))
	assert.Equal(TierUnknown, l.Tier)
	assert.Equal(5, l.DailyLimit)
	assert.Equal(5, l.EffectiveDaily(), "unknown tiers are not warmup-scaled")

	b, err := json.Marshal(Limits{Tier: TierWarmup})
	require.NoError(err)
	assert.Contains(string(b), `"tier":"warmup"`)
}
