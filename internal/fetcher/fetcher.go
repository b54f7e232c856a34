// Package fetcher retrieves remote documents with a per-attempt timeout and
// linear backoff between attempts.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	maxBodyBytes = 16 << 20
)

// ErrFetchExhausted matches every *ExhaustedError.
var ErrFetchExhausted = errors.New("fetch attempts exhausted")

// ExhaustedError is returned after MaxAttempts consecutive failures.
// It unwraps to the last underlying error.
type ExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to fetch %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrFetchExhausted }

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Doer is the subset of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher. Zero fields fall back to the defaults.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	UserAgent   string
	Headers     map[string]string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Fetcher performs GET requests with retry.
type Fetcher struct {
	opts   Options
	client Doer
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithDoer replaces the HTTP client.
func WithDoer(d Doer) Option { return func(f *Fetcher) { f.client = d } }

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// New returns a Fetcher. Timeouts are enforced per attempt through the
// request context, so the default client carries no global timeout.
func New(opts Options, options ...Option) *Fetcher {
	f := &Fetcher{
		opts:   opts.withDefaults(),
		client: &http.Client{},
		sleep:  Sleep,
		logger: slog.Default(),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// Options returns the effective options.
func (f *Fetcher) Options() Options { return f.opts }

// Fetch GETs url and returns the body. After failure n (n < MaxAttempts) it
// waits BaseDelay×n before retrying. Once every attempt has failed it
// returns an *ExhaustedError. Context cancellation aborts immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		body, err := f.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.Warn("fetch attempt failed",
			"url", url, "attempt", attempt, "maxAttempts", f.opts.MaxAttempts, "err", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < f.opts.MaxAttempts {
			if err := f.sleep(ctx, f.opts.BaseDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, &ExhaustedError{URL: url, Attempts: f.opts.MaxAttempts, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return body, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
