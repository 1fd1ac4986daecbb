package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// Fetcher performs GET requests with the configured user agent, per-request
// timeout, per-host politeness and retry policy.
type Fetcher struct {
	client            *http.Client
	limiter           *RateLimiter
	userAgent         string
	timeout           time.Duration
	maxRetries        int
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
	log               *logrus.Entry
}

// NewFetcher creates a new Fetcher instance. limiter may be nil.
func NewFetcher(client *http.Client, limiter *RateLimiter, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:            client,
		limiter:           limiter,
		userAgent:         cfg.UserAgent,
		timeout:           cfg.RequestTimeoutDuration(),
		maxRetries:        cfg.MaxRetries,
		initialRetryDelay: cfg.InitialRetryDelay,
		maxRetryDelay:     cfg.MaxRetryDelay,
		log:               log,
	}
}

// UserAgent returns the header value sent with every request
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch GETs rawURL bounded by the configured request timeout.
// See FetchWithTimeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	return f.FetchWithTimeout(ctx, rawURL, f.timeout)
}

// FetchWithTimeout GETs rawURL. Any HTTP status is returned as a response; only
// transport failures, exhausted retries and context errors produce an error.
// The timeout covers the whole exchange including reading the body, and is
// released when the caller closes resp.Body. A timeout <= 0 means none.
func (f *Fetcher) FetchWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, error) {
	return f.get(ctx, rawURL, timeout, f.maxRetries)
}

// FetchOnce is FetchWithTimeout with a single attempt, whatever max_retries says
func (f *Fetcher) FetchOnce(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, error) {
	return f.get(ctx, rawURL, timeout, 0)
}

func (f *Fetcher) get(ctx context.Context, rawURL string, timeout time.Duration, maxRetries int) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	resp, err := f.doWithRetry(reqCtx, req, maxRetries)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// doWithRetry retries transport errors, 5xx and 429 with exponential backoff and jitter.
// Once retries are exhausted a retryable status is handed back like any other.
func (f *Fetcher) doWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", req.URL.String())

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w after error: %w", err, lastErr)
			}
			return nil, err
		}

		if attempt > 0 {
			finalDelay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Retrying request...")
			select {
			case <-time.After(finalDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w during retry delay: %w", ctx.Err(), lastErr)
			}
		}

		if err := f.limiter.Wait(ctx, req.URL.Host); err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reqLog.Debugf("Request aborted by context: %v", err)
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", err)
			lastErr = err
			continue
		}

		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		if !retryable || attempt == maxRetries {
			reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt}).Debug("Fetched")
			return resp, nil
		}

		lastErr = StatusError(resp.StatusCode)
		reqLog.WithField("status_code", resp.StatusCode).Warn("Retryable status, retrying...")
		drainAndClose(resp)
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoff returns initial * 2^(attempt-1) capped at the max delay, +/- 10% jitter
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(f.initialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || delay > f.maxRetryDelay {
		delay = f.maxRetryDelay
	}
	var jitter time.Duration
	if window := int64(delay) / 5; window > 0 {
		jitter = time.Duration(rand.Int63n(window)) - delay/10
	}
	if delay+jitter < 0 {
		return 0
	}
	return delay + jitter
}

// StatusError wraps an unexpected status code in its HTTP sentinel error
func StatusError(code int) error {
	switch {
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", utils.ErrServerHTTPError, code)
	case code >= 400:
		return fmt.Errorf("%w: HTTP %d", utils.ErrClientHTTPError, code)
	}
	return fmt.Errorf("%w: HTTP %d", utils.ErrOtherHTTPError, code)
}

// ReadBody reads at most limit bytes from r. Bodies larger than limit fail
// with ErrSizeLimitExceeded. A limit <= 0 disables the check.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", utils.ErrSizeLimitExceeded, limit)
	}
	return body, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// cancelOnClose releases the request context once the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
