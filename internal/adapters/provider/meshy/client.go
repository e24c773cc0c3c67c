// Package meshy is a resilient client for the Meshy 3D generation REST API
package meshy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"

	"golang.org/x/time/rate"
)

const (
	baseURLDefault   = "https://api.meshy.ai/openapi"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "shapeshift"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	defaultRPS       = 5
	maxBackoff       = 30 * time.Second

	// maxBody caps what is read back from the provider; uploads are bounded by the image limit
	maxBody = 1 << 20
)

// Options configures the Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transport errors, 429 and 502/503/504
	MaxRetries int
	RetryBase  time.Duration

	// Outbound token bucket shared by every call on this client
	RatePerSec float64
	Burst      int

	Metrics *metrics.Metrics
}

// Client talks to the provider with auth, rate limiting and retries
type Client struct {
	http  *http.Client
	opts  Options
	lim   *rate.Limiter
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a Client, filling unset options with defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = defaultRPS
	}
	if o.Burst < 1 {
		o.Burst = int(o.RatePerSec) + 1
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		lim:   rate.NewLimiter(rate.Limit(o.RatePerSec), o.Burst),
		log:   *logger.Named("meshy"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do issues one logical call, retrying transient failures, and decodes a 2xx body into out
// op labels logs and metrics
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnknown, "meshy encode request")
		}
		payload = b
	}

	start := c.now()
	status := 0
	defer func() { c.opts.Metrics.ProviderCall(op, status, c.now().Sub(start)) }()

	url := c.opts.BaseURL + path
	for attempt := 0; ; attempt++ {
		if err := c.lim.Wait(ctx); err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "meshy rate limiter")
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnknown, "meshy new request failed")
		}
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.opts.UserAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		sent := c.now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt >= c.opts.MaxRetries {
				return perr.Wrap(err, perr.ErrorCodeUnavailable, "meshy request failed")
			}
			back := c.backoff(attempt)
			c.log.Warn().Err(err).Str("op", op).Dur("retry_in", back).Int("attempt", attempt).Msg("meshy transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return err
			}
			continue
		}
		status = resp.StatusCode

		c.log.Debug().
			Str("op", op).
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", c.now().Sub(sent)).
			Msg("meshy http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return decodeClose(resp.Body, out)

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header, c.now())
			if wait <= 0 {
				wait = c.backoff(attempt)
			}
			if wait > maxBackoff {
				wait = maxBackoff
			}
			if attempt >= c.opts.MaxRetries {
				return statusError(resp, perr.ErrorCodeTooManyRequests, "meshy rate limited")
			}
			_ = drainAndClose(resp.Body)
			c.log.Warn().Str("op", op).Dur("sleep", wait).Msg("meshy rate limited backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}

		case resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			if attempt >= c.opts.MaxRetries {
				return statusError(resp, perr.ErrorCodeUnavailable, "meshy transient server error")
			}
			_ = drainAndClose(resp.Body)
			back := c.backoff(attempt)
			c.log.Warn().Str("op", op).Int("status", resp.StatusCode).Dur("retry_in", back).Msg("meshy transient error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return err
			}

		case resp.StatusCode == http.StatusNotFound:
			return statusError(resp, perr.ErrorCodeNotFound, "meshy task not found")

		default:
			return statusError(resp, perr.ErrorCodeProvider, "meshy rejected request")
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// IsNotFound reports whether the provider answered 404
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

func decodeClose(rc io.ReadCloser, out any) error {
	defer rc.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(rc, maxBody)).Decode(out); err != nil {
		return perr.Wrap(err, perr.ErrorCodeProvider, "meshy decode response")
	}
	return nil
}
