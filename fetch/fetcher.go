package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"cararth-ingest/metrics"
	"cararth-ingest/utils"
)

const maxBodyBytes = 10 << 20

// Fetcher is the single gateway for network reads. Every component in
// the pipeline that talks to the network goes through this interface;
// none of them build their own HTTP clients.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error)
}

// FetchError is a terminal fetch failure for one URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CircuitOpenError is returned without touching the network while the
// breaker for a target host is open.
type CircuitOpenError struct {
	Target string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s", e.Target)
}

// Options tune retry and circuit-breaker behavior.
type Options struct {
	Timeout         time.Duration
	MaxAttempts     int
	BaseDelay       time.Duration
	BreakerTrip     uint32
	BreakerCooldown time.Duration
	UserAgent       string
}

// Resilient performs HTTP GETs with per-call timeout, bounded retry
// with back-off and jitter for transient failures only, and one
// circuit breaker per target host.
type Resilient struct {
	client *http.Client
	opts   Options
	logger *utils.Logger
	retry  *utils.RetryConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewResilient creates a fetcher with the given options.
func NewResilient(opts Options, logger *utils.Logger) *Resilient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.BreakerTrip == 0 {
		opts.BreakerTrip = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	return &Resilient{
		client: &http.Client{},
		opts:   opts,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.BaseDelay,
			MaxDelay:    30 * time.Second,
			Logger:      logger,
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch GETs rawURL and returns the response body. Transient failures
// (timeout, reset, DNS, 429, 5xx) are retried up to MaxAttempts; other
// 4xx fail fast. While the target's breaker is open it returns
// CircuitOpenError immediately.
func (f *Resilient) Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	target, err := targetKey(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	cb := f.breaker(target)

	var body []byte
	err = f.retry.Do(ctx, "GET "+rawURL, func() error {
		out, execErr := cb.Execute(func() (interface{}, error) {
			return f.doGet(ctx, rawURL, headers)
		})
		if execErr == gobreaker.ErrOpenState || execErr == gobreaker.ErrTooManyRequests {
			return utils.Permanent(&CircuitOpenError{Target: target})
		}
		if execErr != nil {
			return execErr
		}
		body = out.([]byte)
		return nil
	})
	if err != nil {
		metrics.FetchTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()
	return body, nil
}

func outcomeLabel(err error) string {
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return "circuit_open"
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 && fe.StatusCode != http.StatusTooManyRequests {
		return "permanent_error"
	}
	return "transient_error"
}

// doGet performs a single attempt. Non-transient HTTP failures come
// back wrapped with utils.Permanent so the retry loop stops.
func (f *Resilient) doGet(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.Permanent(&FetchError{URL: rawURL, Err: err})
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts, resets and DNS failures land here — all transient.
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	default:
		return nil, utils.Permanent(&FetchError{URL: rawURL, StatusCode: resp.StatusCode})
	}
}

// breaker returns the breaker for a target, creating it on first use.
// This map is the only cross-call shared state in the pipeline.
func (f *Resilient) breaker(target string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[target]; ok {
		return cb
	}

	trip := f.opts.BreakerTrip
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        target,
		MaxRequests: 1,
		Interval:    f.opts.BreakerCooldown,
		Timeout:     f.opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("[fetch] breaker %s: %s → %s", name, from, to)
		},
	})
	f.breakers[target] = cb
	return cb
}

func targetKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return u.Host, nil
}
