package api

import (
	"context"
	"time"

	"github.com/google/go-querystring/query"
)

// POST /token

type TokenInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenOutput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func CreateToken(ctx context.Context, c *Client, email, password string) (*TokenOutput, error) {
	var out TokenOutput
	if err := c.Post(ctx, "/token", &TokenInput{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// POST /token/refresh

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

func RefreshToken(ctx context.Context, c *Client, refreshToken string) (*TokenOutput, error) {
	var out TokenOutput
	if err := c.Post(ctx, "/token/refresh", &RefreshInput{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /me

type Profile struct {
	UserID           string  `json:"user_id"`
	Email            string  `json:"email"`
	IsActive         bool    `json:"is_active"`
	StripeCustomerID *string `json:"stripe_customer_id,omitempty"`
}

func GetProfile(ctx context.Context, c *Client) (*Profile, error) {
	var out Profile
	if err := c.Get(ctx, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /subscription/limits

type SubscriptionLimits struct {
	Tier             string   `json:"tier"`
	DailyLimit       int      `json:"daily_limit"`
	MonthlyLimit     int      `json:"monthly_limit"`
	WarmupWeek       *int     `json:"warmup_week,omitempty"`
	WarmupPercentage *float64 `json:"warmup_percentage,omitempty"`
}

func GetSubscriptionLimits(ctx context.Context, c *Client) (*SubscriptionLimits, error) {
	var out SubscriptionLimits
	if err := c.Get(ctx, "/subscription/limits", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /subscription/usage

type UsageParams struct {
	// Optional period selector understood by the entitlement service
	// ("day", "month"). Empty returns both counters.
	Period string `url:"period,omitempty"`
}

type SubscriptionUsage struct {
	DailyUsage   int `json:"daily_usage"`
	MonthlyUsage int `json:"monthly_usage"`
}

func GetSubscriptionUsage(ctx context.Context, c *Client, params *UsageParams) (*SubscriptionUsage, error) {
	var out SubscriptionUsage
	vals, err := query.Values(params)
	if err != nil {
		return nil, err
	}
	if err := c.Get(ctx, "/subscription/usage", vals, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /subscription/stats

type SubscriptionStats struct {
	SubscriptionLimits
	SubscriptionUsage
}

func GetSubscriptionStats(ctx context.Context, c *Client) (*SubscriptionStats, error) {
	var out SubscriptionStats
	if err := c.Get(ctx, "/subscription/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// POST /license/validate and /license/activate

type MachineInfo struct {
	Fingerprint string `json:"fingerprint"`
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
}

type LicenseInput struct {
	LicenseKey string      `json:"license_key"`
	Machine    MachineInfo `json:"machine_info"`
}

type LicenseData struct {
	LicenseKey     string    `json:"license_key"`
	ActivationDate time.Time `json:"activation_date"`
	ExpiryDate     time.Time `json:"expiry_date"`
	Features       []string  `json:"features"`
}

func ValidateLicense(ctx context.Context, c *Client, key string, machine MachineInfo) (*LicenseData, error) {
	var out LicenseData
	if err := c.Post(ctx, "/license/validate", &LicenseInput{LicenseKey: key, Machine: machine}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func ActivateLicense(ctx context.Context, c *Client, key string, machine MachineInfo) (*LicenseData, error) {
	var out LicenseData
	if err := c.Post(ctx, "/license/activate", &LicenseInput{LicenseKey: key, Machine: machine}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// POST /comments/generate
//
// The generation service is opaque to this client: quill only gates whether
// the call happens. One accepted call consumes one unit of quota.

type CommentInput struct {
	PostText   string `json:"post_text"`
	AuthorName string `json:"author_name,omitempty"`
}

type CommentOutput struct {
	Comment string `json:"comment"`
}

func GenerateComment(ctx context.Context, c *Client, input *CommentInput) (*CommentOutput, error) {
	var out CommentOutput
	if err := c.Post(ctx, "/comments/generate", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
