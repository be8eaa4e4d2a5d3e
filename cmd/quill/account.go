package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quillworks/quill/api"
	"github.com/quillworks/quill/entitlement"
	"github.com/quillworks/quill/entitlement/countstore"
	"github.com/quillworks/quill/session"

	cli "github.com/urfave/cli/v2"
)

var cmdLogin = &cli.Command{
	Name:   "login",
	Usage:  "verify backend credentials and account activation state",
	Flags:  []cli.Flag{},
	Action: runLogin,
}

func runLogin(cctx *cli.Context) error {
	ctx := context.Background()
	logger := configLogger(cctx, os.Stderr)

	email := cctx.String("email")
	password := cctx.String("password")
	if email == "" || password == "" {
		return fmt.Errorf("need account credentials (--email and --password)")
	}

	auth := session.NewAuthenticator(backendClient(cctx, logger), email, password, logger)
	if err := auth.Login(ctx); err != nil {
		return err
	}

	info := auth.Snapshot()
	fmt.Printf("User ID: %s\n", info.UserID)
	fmt.Printf("Email: %s\n", info.Email)
	fmt.Printf("Active: %v\n", info.Active)
	return nil
}

var cmdQuota = &cli.Command{
	Name:   "quota",
	Usage:  "fetch subscription limits and current usage",
	Flags:  []cli.Flag{},
	Action: runQuota,
}

func runQuota(cctx *cli.Context) error {
	ctx := context.Background()
	logger := configLogger(cctx, os.Stderr)

	email := cctx.String("email")
	password := cctx.String("password")
	if email == "" || password == "" {
		return fmt.Errorf("need account credentials (--email and --password)")
	}

	client := backendClient(cctx, logger)
	auth := session.NewAuthenticator(client, email, password, logger)
	if err := auth.Login(ctx); err != nil {
		return err
	}
	authed := &api.Client{
		HTTPClient: client.HTTPClient,
		Host:       client.Host,
		UserAgent:  client.UserAgent,
		Auth:       auth,
	}

	tracker := entitlement.NewTracker(authed, countstore.NewMemCountStore(), logger)
	if err := tracker.RefreshStats(ctx); err != nil {
		return err
	}
	snap := tracker.Snapshot(ctx)
	lim, use := snap.Limits, snap.Usage

	fmt.Printf("Tier: %s\n", lim.Tier)
	fmt.Printf("Daily usage: %d/%d\n", use.DailyUsed, lim.EffectiveDaily())
	fmt.Printf("Monthly usage: %d/%d\n", use.MonthlyUsed, lim.EffectiveMonthly())
	if lim.EffectiveDaily() != lim.DailyLimit {
		fmt.Printf("Warmup: daily ceiling scaled down from %d\n", lim.DailyLimit)
	}
	return nil
}
