// Package session obtains and maintains the bearer credential for the
// quill backend.
//
// The Authenticator is an explicit state machine (see State) rather than
// nested retry handlers: a downstream 401 marks the session expired and
// triggers at most one refresh and, should that fail, one full re-login
// before the failure surfaces. Account activation state is authoritative
// over token issuance: a login that returns tokens for a deactivated
// account still fails.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quillworks/quill/api"
)

var (
	// ErrNotActive means the account exists but is deactivated. Terminal:
	// no refresh, no retry, no downstream calls.
	ErrNotActive = errors.New("account is not active")
	// ErrNotAuthenticated means no usable credential is held (never logged
	// in, or a previous run ended in terminal failure).
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Access tokens this close to their exp claim are refreshed before use
// instead of waiting for the 401.
const refreshSkew = 30 * time.Second

type Authenticator struct {
	// identity client: used for /token and /token/refresh, which are
	// themselves unauthenticated. Distinct from the clients whose Auth
	// field points back at this Authenticator.
	client   *api.Client
	email    string
	password string
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	cred         Credential
	accessExpiry time.Time
}

func NewAuthenticator(client *api.Client, email, password string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		client:   client,
		email:    email,
		password: password,
		logger:   logger.With("subsystem", "session"),
	}
}

// Login performs the full authentication flow: create a token pair, then
// immediately verify the account profile. A profile with is_active=false
// moves the machine to StateFailed even though token issuance succeeded.
func (a *Authenticator) Login(ctx context.Context) error {
	a.setState(StateAuthenticating)

	tok, err := api.CreateToken(ctx, a.client, a.email, a.password)
	if err != nil {
		a.fail()
		loginCount.WithLabelValues("error").Inc()
		return fmt.Errorf("login failed: %w", err)
	}

	a.mu.Lock()
	a.cred = Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IssuedAt:     time.Now(),
		Email:        a.email,
	}
	a.accessExpiry = tokenExpiry(tok.AccessToken)
	a.mu.Unlock()

	profileClient := &api.Client{
		HTTPClient: a.client.HTTPClient,
		Host:       a.client.Host,
		UserAgent:  a.client.UserAgent,
		Auth:       bearerAuth(tok.AccessToken),
	}
	prof, err := api.GetProfile(ctx, profileClient)
	if err != nil {
		a.fail()
		loginCount.WithLabelValues("error").Inc()
		return fmt.Errorf("verifying account profile: %w", err)
	}
	if !prof.IsActive {
		a.fail()
		loginCount.WithLabelValues("not_active").Inc()
		a.logger.Error("account is deactivated; refusing to operate", "email", a.email)
		return ErrNotActive
	}

	a.mu.Lock()
	a.cred.UserID = prof.UserID
	a.cred.Email = prof.Email
	a.cred.Active = true
	a.cred.StripeCustomerID = prof.StripeCustomerID
	a.state = StateAuthenticated
	a.mu.Unlock()

	loginCount.WithLabelValues("ok").Inc()
	a.logger.Info("authenticated", "user_id", prof.UserID)
	return nil
}

// Logout discards the credential. Safe to call in any state.
func (a *Authenticator) Logout() {
	a.mu.Lock()
	a.cred = Credential{}
	a.accessExpiry = time.Time{}
	a.state = StateUnauthenticated
	a.mu.Unlock()
}

// Ready reports whether authorized calls may be attempted.
func (a *Authenticator) Ready() bool {
	return a.State() == StateAuthenticated
}

func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns a token-free view of the session for status surfaces.
func (a *Authenticator) Snapshot() Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Info{
		State:  a.state,
		UserID: a.cred.UserID,
		Email:  a.cred.Email,
		Active: a.cred.Active,
	}
}

// DoWithAuth implements api.AuthMethod. It attaches the bearer credential,
// and on a 401 performs the expired → refresh → (re-login) recovery before
// retrying the original request exactly once.
func (a *Authenticator) DoWithAuth(ctx context.Context, req *http.Request, client *http.Client) (*http.Response, error) {
	tok, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := a.recover(ctx); err != nil {
		return nil, fmt.Errorf("credential rejected and recovery failed: %w", err)
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		retry.Body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rebuilding request body for auth retry: %w", err)
		}
	}
	tok, err = a.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+tok)
	return client.Do(retry)
}

// accessToken returns the current access token, refreshing proactively when
// the exp claim is about to pass. Only an authenticated session yields a
// token.
func (a *Authenticator) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	switch a.state {
	case StateAuthenticated:
	case StateFailed:
		a.mu.Unlock()
		return "", fmt.Errorf("%w: session previously failed", ErrNotAuthenticated)
	default:
		a.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	tok := a.cred.AccessToken
	expiring := !a.accessExpiry.IsZero() && time.Until(a.accessExpiry) < refreshSkew
	a.mu.Unlock()

	if expiring {
		// best effort: a failed proactive refresh falls through to the
		// 401-triggered path on the actual call
		if err := a.refresh(ctx); err != nil {
			a.logger.Debug("proactive token refresh failed", "err", err)
		} else {
			a.mu.Lock()
			tok = a.cred.AccessToken
			a.mu.Unlock()
		}
	}
	return tok, nil
}

// recover runs the expired-session path: one refresh attempt, then one full
// re-login. Each step at most once per recovering call.
func (a *Authenticator) recover(ctx context.Context) error {
	a.setState(StateExpired)

	if err := a.refresh(ctx); err == nil {
		return nil
	} else {
		a.logger.Warn("token refresh failed, re-authenticating", "err", err)
	}
	return a.Login(ctx)
}

// refresh swaps the token pair using the refresh token. Concurrent
// refreshes coalesce: whoever loses the race keeps the winner's tokens.
func (a *Authenticator) refresh(ctx context.Context) error {
	a.mu.Lock()
	prior := a.cred.RefreshToken
	a.mu.Unlock()
	if prior == "" {
		return ErrNotAuthenticated
	}

	out, err := api.RefreshToken(ctx, a.client, prior)
	if err != nil {
		refreshCount.WithLabelValues("error").Inc()
		return fmt.Errorf("refreshing session: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cred.RefreshToken != prior {
		// another goroutine already rotated the pair
		refreshCount.WithLabelValues("coalesced").Inc()
		return nil
	}
	a.cred.AccessToken = out.AccessToken
	a.cred.RefreshToken = out.RefreshToken
	a.cred.IssuedAt = time.Now()
	a.accessExpiry = tokenExpiry(out.AccessToken)
	a.state = StateAuthenticated
	refreshCount.WithLabelValues("ok").Inc()
	return nil
}

func (a *Authenticator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// fail zeroes the credential and parks the machine in its terminal state.
func (a *Authenticator) fail() {
	a.mu.Lock()
	a.cred = Credential{}
	a.accessExpiry = time.Time{}
	a.state = StateFailed
	a.mu.Unlock()
}

// bearerAuth is a fixed-token AuthMethod, used for the profile verification
// call that happens mid-login, before the Authenticator itself is ready.
type bearerAuth string

func (b bearerAuth) DoWithAuth(ctx context.Context, req *http.Request, client *http.Client) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+string(b))
	return client.Do(req)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority, this only schedules proactive refreshes.
// Returns the zero time for opaque (non-JWT) tokens.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
