package middleware

import (
	"net/http"
	"runtime/debug"

	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	pnet "shapeshift/internal/platform/net"
)

// RecoverJSON turns a panic into a logged 500 envelope
// http.ErrAbortHandler is re-raised so net/http can abort the connection
func RecoverJSON(write func(w http.ResponseWriter, status int, body any)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				reqID := pnet.RequestID(r.Context())
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if reqID != "" {
					w.Header().Set("X-Request-ID", reqID)
				}
				status, body := pnet.Error(perr.PanicErrf("internal error"), reqID)
				write(w, status, body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
