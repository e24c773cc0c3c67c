// Package net carries request-scoped identity through contexts
package net

import (
	"context"
	"slices"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Principal is the authenticated caller of a request
type Principal struct {
	UserID string
	Scopes []string
}

// HasScope reports whether the principal was granted scope
func (p Principal) HasScope(scope string) bool { return slices.Contains(p.Scopes, scope) }

type ctxKey uint8

const keyPrincipal ctxKey = iota

// WithRequestID stores a request id where chi's GetReqID finds it
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, reqID)
}

// WithPrincipal stores the authenticated caller on ctx; an empty user id is ignored
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if p.UserID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyPrincipal, p)
}

// PrincipalFrom returns the caller stored on ctx
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(keyPrincipal).(Principal)
	return p, ok
}

// RequestID returns the request id on ctx, if any
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// UserID returns the authenticated user id on ctx, if any
func UserID(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.UserID
}
