package entitlement

import "math"

// Limits are the nominal tier ceilings plus warmup ramp fields. Warmup
// accounts run under a scaled-down ceiling during their first weeks.
type Limits struct {
	Tier          Tier     `json:"tier"`
	DailyLimit    int      `json:"daily_limit"`
	MonthlyLimit  int      `json:"monthly_limit"`
	WarmupWeek    *int     `json:"warmup_week,omitempty"`
	WarmupPercent *float64 `json:"warmup_percent,omitempty"`
}

type Usage struct {
	DailyUsed   int `json:"daily_used"`
	MonthlyUsed int `json:"monthly_used"`
}

// warmupWeekPercent is the ramp applied when the service names the week but
// not the percentage: 25% in week one, full entitlement from week four.
func warmupWeekPercent(week int) float64 {
	switch {
	case week <= 1:
		return 25
	case week == 2:
		return 50
	case week == 3:
		return 75
	default:
		return 100
	}
}

// warmupPercent resolves the effective ramp percentage. A served
// warmup_percentage wins over the week-derived curve; a warmup account with
// neither field runs at the most conservative step.
func (l *Limits) warmupPercent() float64 {
	if l.Tier != TierWarmup {
		return 100
	}
	if l.WarmupPercent != nil {
		return math.Max(0, *l.WarmupPercent)
	}
	if l.WarmupWeek != nil {
		return warmupWeekPercent(*l.WarmupWeek)
	}
	return warmupWeekPercent(1)
}

func scale(nominal int, percent float64) int {
	if percent >= 100 {
		return nominal
	}
	return int(math.Ceil(float64(nominal) * percent / 100))
}

// EffectiveDaily is the daily ceiling after warmup scaling.
func (l *Limits) EffectiveDaily() int {
	return scale(l.DailyLimit, l.warmupPercent())
}

// EffectiveMonthly is the monthly ceiling after warmup scaling.
func (l *Limits) EffectiveMonthly() int {
	return scale(l.MonthlyLimit, l.warmupPercent())
}
