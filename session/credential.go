package session

import "time"

// Credential is the bearer credential pair plus the account identity it was
// issued for. Owned exclusively by the Authenticator: mutated only on
// login/refresh, zeroed on logout or terminal auth failure. Never persisted
// to disk; the only local state this system keeps is the license record.
type Credential struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	UserID       string
	Email        string
	Active       bool
	// Present when the account has billing attached.
	StripeCustomerID *string
}

// Info is a sanitized snapshot for status surfaces: no token material.
type Info struct {
	State  State  `json:"state"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Active bool   `json:"active"`
}
