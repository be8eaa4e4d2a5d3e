package relevance

import "math"

// Per-window decay parameters. Content decays exponentially with age
// toward a floor rather than to zero, so an old post that is still inside
// its discovery window stays eligible, just heavily discounted. Half-lives
// and floors were tuned so that content at the far edge of each window sits
// near its floor.
type decayCurve struct {
	halfLifeHours float64
	floor         float64
}

var decayCurves = map[Window]decayCurve{
	WindowPastDay:   {halfLifeHours: 12, floor: 0.35},
	WindowPastWeek:  {halfLifeHours: 72, floor: 0.30},
	WindowPastMonth: {halfLifeHours: 336, floor: 0.25},
}

// TimeMultiplier returns the age discount for a post discovered under the
// given window. Monotone non-increasing in age and always within (0, 1];
// ages at or below zero return exactly 1.
func TimeMultiplier(w Window, ageHours float64) float64 {
	curve, ok := decayCurves[w]
	if !ok {
		return 1.0
	}
	if ageHours <= 0 {
		return 1.0
	}
	mult := math.Exp2(-ageHours / curve.halfLifeHours)
	if mult < curve.floor {
		return curve.floor
	}
	return mult
}

// Decide applies the time-decay policy and threshold to a raw score.
// Deterministic, side-effect free, and independent of any network or clock:
// the item's age was fixed when the collector captured it.
//
// A final score exactly equal to minScore decides to act.
func Decide(item Item, raw, minScore float64) Result {
	mult := TimeMultiplier(item.Window, item.AgeHours)
	final := raw * mult
	return Result{
		Raw:            raw,
		TimeMultiplier: mult,
		Final:          final,
		Act:            final >= minScore,
	}
}
