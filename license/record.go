package license

import "time"

// Record is the locally persisted activation state, the only thing quill
// writes to disk. One JSON file; absence means "no license".
type Record struct {
	Key             string    `json:"license_key"`
	Fingerprint     string    `json:"machine_fingerprint"`
	ActivatedAt     time.Time `json:"activated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Features        []string  `json:"features,omitempty"`
	LastValidatedAt time.Time `json:"last_validated_at"`
}

// Expired reports whether the record's expiry has passed. Records without
// an expiry never expire locally; the backend remains the authority.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// HasFeature reports whether the activation includes a named feature flag.
func (r *Record) HasFeature(name string) bool {
	for _, f := range r.Features {
		if f == name {
			return true
		}
	}
	return false
}
