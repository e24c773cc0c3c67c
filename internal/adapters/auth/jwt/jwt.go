// Package jwt verifies bearer tokens issued by the identity provider
package jwt

import (
	"strings"
	"time"

	"shapeshift/internal/platform/config"
	perr "shapeshift/internal/platform/errors"
	pnet "shapeshift/internal/platform/net"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Options configures a Verifier
type Options struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// FromConfig reads AUTH_JWT_*; the secret is required
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("AUTH_JWT_")
	return Options{
		Secret:   c.MustString("SECRET"),
		Issuer:   c.MayString("ISSUER", ""),
		Audience: c.MayString("AUDIENCE", ""),
		Leeway:   c.MayDuration("LEEWAY", 30*time.Second),
	}
}

// Claims are the token claims the API reads
// Scope is the OAuth style space separated list; Scopes is accepted as well
type Claims struct {
	Scope  string   `json:"scope,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	gojwt.RegisteredClaims
}

// Verifier checks HS256 tokens
type Verifier struct {
	secret []byte
	opts   Options
	parser *gojwt.Parser
}

// New returns a Verifier; an empty secret is an error
func New(o Options) (*Verifier, error) {
	if strings.TrimSpace(o.Secret) == "" {
		return nil, perr.InvalidArgf("jwt secret is empty")
	}
	popts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(o.Leeway),
	}
	if o.Issuer != "" {
		popts = append(popts, gojwt.WithIssuer(o.Issuer))
	}
	if o.Audience != "" {
		popts = append(popts, gojwt.WithAudience(o.Audience))
	}
	return &Verifier{secret: []byte(o.Secret), opts: o, parser: gojwt.NewParser(popts...)}, nil
}

// Verify parses raw and returns the caller it names
// It has the httpkit.TokenFunc shape
func (v *Verifier) Verify(raw string) (pnet.Principal, error) {
	var c Claims
	_, err := v.parser.ParseWithClaims(raw, &c, func(*gojwt.Token) (any, error) { return v.secret, nil })
	if err != nil {
		return pnet.Principal{}, perr.Wrap(err, perr.ErrorCodeUnauthorized, "token rejected")
	}
	if c.Subject == "" {
		return pnet.Principal{}, perr.Unauthorizedf("token has no subject")
	}
	return pnet.Principal{UserID: c.Subject, Scopes: scopes(c)}, nil
}

func scopes(c Claims) []string {
	out := append([]string(nil), c.Scopes...)
	for s := range strings.FieldsSeq(c.Scope) {
		out = append(out, s)
	}
	return out
}

// Issue signs a token for subject; used by tooling and tests
func (v *Verifier) Issue(subject string, ttl time.Duration, scope ...string) (string, error) {
	now := time.Now()
	c := Claims{
		Scope: strings.Join(scope, " "),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.opts.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.opts.Audience != "" {
		c.Audience = gojwt.ClaimStrings{v.opts.Audience}
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, c).SignedString(v.secret)
}
