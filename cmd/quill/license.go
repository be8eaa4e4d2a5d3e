package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/quillworks/quill/license"

	cli "github.com/urfave/cli/v2"
)

var cmdLicense = &cli.Command{
	Name:  "license",
	Usage: "manage the machine license activation",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:      "activate",
			Usage:     "bind a license key to this machine",
			ArgsUsage: "<license-key>",
			Action:    runLicenseActivate,
		},
		&cli.Command{
			Name:   "status",
			Usage:  "validate the stored (or provided) license",
			Action: runLicenseStatus,
		},
	},
}

func licenseValidator(cctx *cli.Context, logger *slog.Logger) (*license.Validator, error) {
	var store *license.Store
	if path := cctx.String("state-path"); path != "" {
		store = license.NewStore(path)
	} else {
		var err error
		store, err = license.DefaultStore()
		if err != nil {
			return nil, err
		}
	}
	return license.NewValidator(backendClient(cctx, logger), store, logger), nil
}

func runLicenseActivate(cctx *cli.Context) error {
	ctx := context.Background()
	logger := configLogger(cctx, os.Stderr)

	key := cctx.Args().First()
	if key == "" {
		key = cctx.String("license-key")
	}
	if key == "" {
		return fmt.Errorf("need a license key (argument or --license-key)")
	}

	v, err := licenseValidator(cctx, logger)
	if err != nil {
		return err
	}
	st, err := v.Activate(ctx, key)
	if err != nil {
		return err
	}
	printLicenseStatus(st)
	return nil
}

func runLicenseStatus(cctx *cli.Context) error {
	ctx := context.Background()
	logger := configLogger(cctx, os.Stderr)

	v, err := licenseValidator(cctx, logger)
	if err != nil {
		return err
	}
	// always print the status, then exit non-zero on an invalid license
	st, verr := v.Validate(ctx, cctx.String("license-key"))
	printLicenseStatus(st)
	return verr
}

func printLicenseStatus(st *license.Status) {
	fmt.Printf("Valid: %v\n", st.Valid)
	if st.Offline {
		fmt.Printf("Offline: true\n")
	}
	if st.Reason != "" {
		fmt.Printf("Reason: %s\n", st.Reason)
	}
	if rec := st.Record; rec != nil {
		fmt.Printf("Fingerprint: %s\n", rec.Fingerprint)
		if !rec.ExpiresAt.IsZero() {
			fmt.Printf("Expires: %s\n", rec.ExpiresAt.Format(time.RFC3339))
		}
		if !rec.LastValidatedAt.IsZero() {
			fmt.Printf("Last validated: %s\n", rec.LastValidatedAt.Format(time.RFC3339))
		}
		for _, f := range rec.Features {
			fmt.Printf("Feature: %s\n", f)
		}
	}
}
