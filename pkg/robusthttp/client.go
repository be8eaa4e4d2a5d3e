// Package robusthttp builds the HTTP clients used for every backend call:
// pooled transport, otel instrumentation, and bounded retries with the one
// quill-specific rule that 429 responses are never retried internally, so
// the pacing layer sees them.
package robusthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type LeveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type Option func(*retryablehttp.Client)

func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

func WithRetryWaitMin(waitMin time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
	}
}

func WithRetryWaitMax(waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(client *retryablehttp.Client) {
		client.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	}
}

func WithTransport(transport http.RoundTripper) Option {
	return func(client *retryablehttp.Client) {
		client.HTTPClient.Transport = transport
	}
}

func WithRetryPolicy(policy retryablehttp.CheckRetry) Option {
	return func(client *retryablehttp.Client) {
		client.CheckRetry = policy
	}
}

func base(options ...Option) *retryablehttp.Client {
	logger := LeveledSlog{inner: slog.Default().With("subsystem", "robusthttp")}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(logger)
	retryClient.CheckRetry = DefaultRetryPolicy

	for _, option := range options {
		option(retryClient)
	}
	return retryClient
}

// NewClient is for action-consuming calls (comment generation), which may
// legitimately take a while: 30 second overall timeout. The returned client
// has the stdlib http.Client interface with retryablehttp logic inside;
// connection errors and 5xx (except 501) are retried.
func NewClient(options ...Option) *http.Client {
	client := base(options...).StandardClient()
	client.Timeout = 30 * time.Second
	return client
}

// NewInteractiveClient is for identity, entitlement, and license calls,
// where a stale answer handled by the fallback policy beats a slow one:
// 10 second overall timeout and fewer retries.
func NewInteractiveClient(options ...Option) *http.Client {
	opts := append([]Option{WithMaxRetries(2), WithRetryWaitMax(3 * time.Second)}, options...)
	client := base(opts...).StandardClient()
	client.Timeout = 10 * time.Second
	return client
}

// DefaultRetryPolicy wraps retryablehttp.DefaultRetryPolicy but treats
// `429 Too Many Requests` as non-retryable: rate-limit responses belong to
// the pacing layer, not the transport.
func DefaultRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
