// quill: decision and entitlement engine for the comment automation client.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quillworks/quill/api"
	"github.com/quillworks/quill/engine"
	"github.com/quillworks/quill/pkg/metrics"
	"github.com/quillworks/quill/pkg/robusthttp"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "quill",
		Usage:   "comment automation decision engine",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "backend-host",
			Usage:   "method, hostname, and port of the quill backend",
			Value:   "https://api.quillworks.io",
			EnvVars: []string{"QUILL_BACKEND_HOST"},
		},
		&cli.StringFlag{
			Name:    "email",
			Usage:   "account email for backend login",
			EnvVars: []string{"QUILL_EMAIL"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "account password for backend login",
			EnvVars: []string{"QUILL_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "license-key",
			Usage:   "license key; empty falls back to the stored activation record",
			EnvVars: []string{"QUILL_LICENSE_KEY"},
		},
		&cli.StringSliceFlag{
			Name:    "interests",
			Usage:   "interest keywords for relevance scoring, comma separated",
			EnvVars: []string{"QUILL_INTERESTS"},
		},
		&cli.Float64Flag{
			Name:    "min-score",
			Usage:   "decision threshold on the final (time-decayed) score",
			Value:   10,
			EnvVars: []string{"QUILL_MIN_SCORE"},
		},
		&cli.StringFlag{
			Name:    "state-path",
			Usage:   "file path for the license activation record (default: XDG state dir)",
			EnvVars: []string{"QUILL_STATE_PATH"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"QUILL_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		cmdRun,
		cmdEval,
		cmdLogin,
		cmdLicense,
		cmdQuota,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// flags shared by every command that constructs the full engine
var engineFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis connection URL for shared action counters; empty keeps them in-process",
		EnvVars: []string{"QUILL_REDIS_URL"},
	},
	&cli.IntFlag{
		Name:    "session-cap",
		Usage:   "fallback per-session action cap when the entitlement service is unreachable",
		Value:   20,
		EnvVars: []string{"QUILL_SESSION_CAP"},
	},
	&cli.IntFlag{
		Name:    "daily-cap",
		Usage:   "fallback per-day action cap when the entitlement service is unreachable",
		Value:   50,
		EnvVars: []string{"QUILL_DAILY_CAP"},
	},
	&cli.IntFlag{
		Name:    "actions-per-hour",
		Usage:   "sliding-window ceiling on comment actions per hour",
		Value:   10,
		EnvVars: []string{"QUILL_ACTIONS_PER_HOUR"},
	},
	&cli.DurationFlag{
		Name:    "action-spacing",
		Usage:   "minimum gap between consecutive comment actions",
		Value:   30 * time.Second,
		EnvVars: []string{"QUILL_ACTION_SPACING"},
	},
}

func configFromFlags(cctx *cli.Context) engine.Config {
	return engine.Config{
		Host:           cctx.String("backend-host"),
		Email:          cctx.String("email"),
		Password:       cctx.String("password"),
		LicenseKey:     cctx.String("license-key"),
		Interests:      cctx.StringSlice("interests"),
		MinScore:       cctx.Float64("min-score"),
		StatePath:      cctx.String("state-path"),
		RedisURL:       cctx.String("redis-url"),
		SessionCap:     cctx.Int("session-cap"),
		DailyCap:       cctx.Int("daily-cap"),
		ActionsPerHour: cctx.Int("actions-per-hour"),
		ActionSpacing:  cctx.Duration("action-spacing"),
	}
}

// backendClient builds the plain (unauthenticated) API client the one-shot
// subcommands use.
func backendClient(cctx *cli.Context, logger *slog.Logger) *api.Client {
	return &api.Client{
		HTTPClient: robusthttp.NewInteractiveClient(robusthttp.WithLogger(logger)),
		Host:       cctx.String("backend-host"),
		UserAgent:  "quill/" + versioninfo.Short(),
	}
}

var cmdRun = &cli.Command{
	Name:  "run",
	Usage: "run the decision daemon",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the local HTTP API",
			Value:   ":8180",
			EnvVars: []string{"QUILL_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":8181",
			EnvVars: []string{"QUILL_METRICS_LISTEN"},
		},
		&cli.DurationFlag{
			Name:    "quota-refresh",
			Usage:   "interval between background entitlement refreshes",
			Value:   5 * time.Minute,
			EnvVars: []string{"QUILL_QUOTA_REFRESH"},
		},
	}, engineFlags...),
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownOTEL, err := configOTEL(ctx, "quill")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		eng, err := engine.New(configFromFlags(cctx), logger)
		if err != nil {
			return err
		}
		if err := eng.Startup(ctx); err != nil {
			return fmt.Errorf("startup failed: %w", err)
		}

		srv := NewServer(eng, logger, cctx.String("bind"))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.RunAPI(ctx)
		})
		g.Go(func() error {
			return metrics.RunServer(ctx, cctx.String("metrics-listen"))
		})
		g.Go(func() error {
			return eng.RefreshQuotaLoop(ctx, cctx.Duration("quota-refresh"))
		})
		return g.Wait()
	},
}
