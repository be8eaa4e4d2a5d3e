// Package license binds the product license to one machine and keeps the
// activation fresh.
//
// Validation prefers the backend but tolerates its absence: a persisted
// record that matches the current machine fingerprint and has not expired
// keeps the client operating offline. The fingerprint check is
// unconditional; a record activated on another machine is never usable,
// online or off.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillworks/quill/api"
)

var (
	ErrNoLicense = errors.New("no license found")
	// ErrExpired means the locally held activation has passed its expiry
	// and the backend could not extend it.
	ErrExpired             = errors.New("license has expired")
	ErrFingerprintMismatch = errors.New("license is bound to a different machine")
)

// Online revalidation cadence: a record validated within this interval is
// trusted without a network call.
const defaultRevalidateAfter = 24 * time.Hour

// Status is the outcome of a validation or activation.
type Status struct {
	Valid   bool    `json:"valid"`
	Offline bool    `json:"offline,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Record  *Record `json:"record,omitempty"`
}

type Validator struct {
	client *api.Client
	store  *Store
	logger *slog.Logger

	// test seams
	now             func() time.Time
	revalidateAfter time.Duration
}

func NewValidator(client *api.Client, store *Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		client:          client,
		store:           store,
		logger:          logger.With("subsystem", "license"),
		now:             time.Now,
		revalidateAfter: defaultRevalidateAfter,
	}
}

// Validate runs the fallback chain for the given key. An empty key means
// "whatever was activated here before". The returned Status is always
// non-nil and carries the reason; the error is nil exactly when the license
// came out valid.
//
// Chain: load the local record; if online revalidation is due (never
// validated, stale, expired, or a different key was supplied) call the
// backend and persist the refreshed record; if the backend cannot confirm,
// fall back to the local record, accepted only when its fingerprint matches
// this machine and its expiry has not passed.
func (v *Validator) Validate(ctx context.Context, key string) (*Status, error) {
	rec, err := v.store.Load()
	if err != nil && !errors.Is(err, ErrNoRecord) {
		// unreadable state file is recoverable if the backend answers
		v.logger.Warn("license record unreadable, treating as absent", "err", err)
		rec = nil
	}

	if key == "" {
		if rec == nil {
			validationCount.WithLabelValues("invalid").Inc()
			return &Status{Valid: false, Reason: "no license key configured and no local activation"}, ErrNoLicense
		}
		key = rec.Key
	}

	machine, err := MachineInfo()
	if err != nil {
		return &Status{Valid: false, Reason: "machine fingerprint unavailable"}, err
	}
	now := v.now()

	offline := false
	if v.revalidationDue(rec, key, now) {
		data, err := api.ValidateLicense(ctx, v.client, key, machine)
		if err == nil {
			fresh := recordFromData(key, data, machine.Fingerprint, now)
			v.persist(fresh)
			validationCount.WithLabelValues("ok").Inc()
			return &Status{Valid: true, Record: fresh}, nil
		}
		if api.IsTransient(err) {
			v.logger.Warn("license service unreachable, falling back to local record", "err", err)
		} else {
			v.logger.Warn("license service rejected validation, falling back to local record", "err", err)
		}
		offline = true
	}

	return v.acceptLocal(rec, key, machine.Fingerprint, now, offline)
}

// Activate performs the remote activation and persists the resulting record
// bound to this machine. There is no offline path: activation requires the
// backend.
func (v *Validator) Activate(ctx context.Context, key string) (*Status, error) {
	machine, err := MachineInfo()
	if err != nil {
		return nil, err
	}

	data, err := api.ActivateLicense(ctx, v.client, key, machine)
	if err != nil {
		validationCount.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("license activation failed: %w", err)
	}

	rec := recordFromData(key, data, machine.Fingerprint, v.now())
	v.persist(rec)
	validationCount.WithLabelValues("ok").Inc()
	v.logger.Info("license activated", "expires_at", rec.ExpiresAt, "features", rec.Features)
	return &Status{Valid: true, Record: rec}, nil
}

func (v *Validator) revalidationDue(rec *Record, key string, now time.Time) bool {
	if rec == nil || rec.Key != key {
		return true
	}
	if rec.LastValidatedAt.IsZero() || now.Sub(rec.LastValidatedAt) > v.revalidateAfter {
		return true
	}
	// a locally expired record forces a remote attempt; the subscription
	// may have been renewed server side
	return rec.Expired(now)
}

// acceptLocal applies the local acceptance rules shared by the cached and
// offline paths.
func (v *Validator) acceptLocal(rec *Record, key, fingerprint string, now time.Time, offline bool) (*Status, error) {
	if rec == nil || rec.Key != key {
		validationCount.WithLabelValues("invalid").Inc()
		return &Status{
			Valid:   false,
			Offline: offline,
			Reason:  "license could not be validated online and no local activation exists for this key",
		}, fmt.Errorf("validating %q: %w", key, ErrNoLicense)
	}
	if rec.Fingerprint != fingerprint {
		validationCount.WithLabelValues("invalid").Inc()
		return &Status{
			Valid:   false,
			Offline: offline,
			Reason:  "local activation belongs to a different machine; re-activate on this one",
			Record:  rec,
		}, ErrFingerprintMismatch
	}
	if rec.Expired(now) {
		validationCount.WithLabelValues("invalid").Inc()
		return &Status{
			Valid:   false,
			Offline: offline,
			Reason:  fmt.Sprintf("license expired %s", rec.ExpiresAt.Format(time.RFC3339)),
			Record:  rec,
		}, ErrExpired
	}

	st := &Status{Valid: true, Offline: offline, Record: rec}
	if offline {
		st.Reason = "accepted from local record; license service unavailable"
		validationCount.WithLabelValues("offline").Inc()
	} else {
		validationCount.WithLabelValues("cached").Inc()
	}
	return st, nil
}

// persist saves the refreshed record. Write failures do not undo a
// successful online validation; they are logged and counted so operators
// notice the next run will have no offline fallback.
func (v *Validator) persist(rec *Record) {
	if err := v.store.Save(rec); err != nil {
		persistFailures.Inc()
		v.logger.Warn("failed to persist license record", "path", v.store.Path(), "err", err)
	}
}

func recordFromData(key string, data *api.LicenseData, fingerprint string, now time.Time) *Record {
	rec := &Record{
		Key:             data.LicenseKey,
		Fingerprint:     fingerprint,
		ActivatedAt:     data.ActivationDate,
		ExpiresAt:       data.ExpiryDate,
		Features:        data.Features,
		LastValidatedAt: now,
	}
	if rec.Key == "" {
		rec.Key = key
	}
	if rec.ActivatedAt.IsZero() {
		rec.ActivatedAt = now
	}
	return rec
}
