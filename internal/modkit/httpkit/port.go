package httpkit

import (
	"net/http"

	perr "shapeshift/internal/platform/errors"
	pnet "shapeshift/internal/platform/net"
)

// TokenFunc verifies a raw bearer token and returns its principal
type TokenFunc func(token string) (pnet.Principal, error)

// Port implements middleware.AuthPort by reading the bearer token and delegating to a TokenFunc
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port from a verifier
func NewPortFunc(fn TokenFunc) *Port { return &Port{parse: fn} }

// Parse returns Unauthorized when the header is missing or malformed or the token is rejected
// Verifier errors are not echoed to the caller
func (p *Port) Parse(r *http.Request) (pnet.Principal, error) {
	raw, err := JWT(r)
	if err != nil {
		return pnet.Principal{}, err
	}
	if p == nil || p.parse == nil {
		return pnet.Principal{}, perr.Unauthorizedf("invalid bearer token")
	}
	who, err := p.parse(raw)
	if err != nil {
		return pnet.Principal{}, perr.Wrap(err, perr.ErrorCodeUnauthorized, "invalid bearer token")
	}
	return who, nil
}
