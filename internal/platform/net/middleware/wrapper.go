// Package middleware adapts chi and go-chi/cors middleware and hosts the in-house ones
package middleware

import (
	"net/http"
	"time"

	pstrings "shapeshift/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// Middleware is the standard net/http middleware shape
type Middleware = func(http.Handler) http.Handler

func RequestID() Middleware                   { return chimw.RequestID }
func RealIP() Middleware                      { return chimw.RealIP }
func NoCache() Middleware                     { return chimw.NoCache }
func StripSlashes() Middleware                { return chimw.StripSlashes }
func Timeout(d time.Duration) Middleware      { return chimw.Timeout(d) }
func Throttle(limit int) Middleware           { return chimw.Throttle(limit) }
func Heartbeat(path string) Middleware        { return chimw.Heartbeat(path) }
func SetHeader(name, value string) Middleware { return chimw.SetHeader(name, value) }

// Compress gzips/deflates responses; level is a compress/flate level
func Compress(level int) Middleware {
	c := chimw.NewCompressor(level)
	return c.Handler
}

// AllowContentType rejects request bodies with other content types
func AllowContentType(ct ...string) Middleware { return chimw.AllowContentType(ct...) }

// CORSOptions is the subset of go-chi/cors the API configures
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS applies go-chi/cors with the API's default methods and headers
func CORS(o CORSOptions) Middleware {
	return chicors.Handler(chicors.Options{
		AllowedOrigins:   pstrings.IfEmpty(o.AllowedOrigins, []string{"*"}),
		AllowedMethods:   pstrings.IfEmpty(o.AllowedMethods, []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders:   pstrings.IfEmpty(o.AllowedHeaders, []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
		ExposedHeaders:   pstrings.IfEmpty(o.ExposedHeaders, []string{"X-Request-ID", "Retry-After"}),
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}
