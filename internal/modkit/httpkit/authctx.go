package httpkit

import (
	"net/http"
	"strings"

	perr "shapeshift/internal/platform/errors"
	pnet "shapeshift/internal/platform/net"
)

// User returns the authenticated user id from the request context
func User(r *http.Request) (string, error) {
	uid := pnet.UserID(r.Context())
	if uid == "" {
		return "", perr.Unauthorizedf("missing bearer token")
	}
	return uid, nil
}

// Principal returns the authenticated caller
func Principal(r *http.Request) (pnet.Principal, error) {
	p, ok := pnet.PrincipalFrom(r.Context())
	if !ok {
		return pnet.Principal{}, perr.Unauthorizedf("missing bearer token")
	}
	return p, nil
}

// JWT returns the raw bearer token from the Authorization header
// The scheme is matched case-insensitively
func JWT(r *http.Request) (string, error) {
	s := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, raw, ok := strings.Cut(s, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", perr.Unauthorizedf("missing bearer token")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", perr.Unauthorizedf("missing bearer token")
	}
	return raw, nil
}
