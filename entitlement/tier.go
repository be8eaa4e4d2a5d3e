package entitlement

import (
	"encoding/json"
	"strings"
)

// Tier is the subscription tier reported by the entitlement service.
type Tier int

const (
	// TierUnknown covers tiers this client version does not know about.
	// Unknown tiers keep their nominal limits unscaled.
	TierUnknown Tier = iota
	TierFree
	TierWarmup
	TierPaid
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierWarmup:
		return "warmup"
	case TierPaid:
		return "paid"
	default:
		return "unknown"
	}
}

// ParseTier is tolerant: the service may introduce tiers this build has
// never heard of, and that must not break quota handling.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TierFree
	case "warmup", "warm-up":
		return TierWarmup
	case "paid", "pro", "premium":
		return TierPaid
	default:
		return TierUnknown
	}
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseTier(s)
	return nil
}
