package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"shapeshift/internal/platform/metrics"
	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/platform/net/middleware"
)

// StackOptions tunes CommonStack
type StackOptions struct {
	CORSOrigins []string
	Timeout     time.Duration
	SlowRequest time.Duration
	Metrics     *metrics.Metrics
}

// CommonStack is the baseline middleware every API router gets
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON(phttp.JSON),
		middleware.AccessLog(middleware.AccessLogOptions{
			Slow: o.SlowRequest,
			Skip: []string{"/meta/health", "/metrics"},
		}),
		o.Metrics.Middleware,
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.CORSOrigins}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes(),
		middleware.Timeout(o.Timeout),
	}
}

// Auth wires the auth middleware to the envelope writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.JSON)
}

// RequireScope answers 403 unless the caller holds scope
func RequireScope(scope string) func(http.Handler) http.Handler {
	return middleware.RequireScope(scope, phttp.JSON)
}

// RateLimit applies a per-user token bucket
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	return middleware.RateLimit(middleware.RateLimitOptions{RPS: rps, Burst: burst}, phttp.JSON)
}
