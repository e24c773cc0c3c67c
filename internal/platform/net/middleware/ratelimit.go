package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	perr "shapeshift/internal/platform/errors"
	pnet "shapeshift/internal/platform/net"

	"golang.org/x/time/rate"
)

// RateLimitOptions configures a per-key token bucket
type RateLimitOptions struct {
	RPS   float64
	Burst int
	// Key picks the bucket; defaults to the authenticated user, then the client IP
	Key func(r *http.Request) string
	// Idle buckets older than this are dropped during the next sweep
	Idle time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyByUser buckets authenticated requests per user and anonymous ones per IP
func KeyByUser(r *http.Request) string {
	if uid := pnet.UserID(r.Context()); uid != "" {
		return "u:" + uid
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit answers 429 with Retry-After once a key exhausts its bucket
func RateLimit(o RateLimitOptions, write Writer) Middleware {
	if o.Key == nil {
		o.Key = KeyByUser
	}
	if o.Idle <= 0 {
		o.Idle = 3 * time.Minute
	}
	if o.Burst < 1 {
		o.Burst = 1
	}
	var (
		mu        sync.Mutex
		buckets   = map[string]*bucket{}
		lastSweep = time.Now()
	)
	take := func(key string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastSweep) > o.Idle {
			for k, b := range buckets {
				if now.Sub(b.seen) > o.Idle {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(o.RPS), o.Burst)}
			buckets[key] = b
		}
		b.seen = now
		return b.lim
	}

	return func(next http.Handler) http.Handler {
		if o.RPS <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			res := take(o.Key(r), now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				secs := int(delay/time.Second) + 1
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				status, body := pnet.Error(perr.TooManyf("rate limit exceeded, retry in %ds", secs), pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
