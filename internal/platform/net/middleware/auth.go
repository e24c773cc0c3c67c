package middleware

import (
	"net/http"

	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	pnet "shapeshift/internal/platform/net"
)

// AuthPort resolves the caller of a request
type AuthPort interface {
	Parse(r *http.Request) (pnet.Principal, error)
}

// Writer writes a status and body; handlers pass the envelope JSON writer
type Writer = func(w http.ResponseWriter, status int, body any)

// Auth rejects requests the port cannot resolve and stores the principal on the context
// A nil port lets every request through anonymously
func Auth(p AuthPort, write Writer) Middleware {
	return func(next http.Handler) http.Handler {
		if p == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := p.Parse(r)
			if err == nil && who.UserID == "" {
				err = perr.Unauthorizedf("token has no subject")
			}
			if err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			ctx := pnet.WithPrincipal(r.Context(), who)
			ctx = logger.WithRequest(ctx, pnet.RequestID(ctx), who.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope answers 403 unless the authenticated principal holds scope
func RequireScope(scope string, write Writer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, ok := pnet.PrincipalFrom(r.Context())
			if !ok || !who.HasScope(scope) {
				status, body := pnet.Error(perr.Forbiddenf("missing scope %s", scope), pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
