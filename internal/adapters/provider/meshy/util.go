package meshy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	perr "shapeshift/internal/platform/errors"
)

// StatusError wraps a non-2xx provider response
type StatusError struct {
	Status int
	// Body is at most the first 2 KiB of the response
	Body string
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus returns the provider status code
func (e *StatusError) HTTPStatus() int { return e.Status }

// Message extracts the provider's "message" field when the body is JSON
func (e *StatusError) Message() string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &m); err == nil && m.Message != "" {
		return m.Message
	}
	return ""
}

func statusError(resp *http.Response, code perr.ErrorCode, msg string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	_ = resp.Body.Close()
	return &StatusError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
		Err:    perr.Newf(code, "%s (status %d)", msg, resp.StatusCode),
	}
}

// retryAfter reads Retry-After as seconds or an HTTP date
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}

// IsTransient reports whether err is a retryable provider failure
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return perr.Retryable(err)
}
