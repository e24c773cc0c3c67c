package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRouter adapts any chi.Router; root is kept so sub routers can still expose the top mux
type chiRouter struct {
	root *chi.Mux
	r    chi.Router
}

// AdaptChi wraps a chi mux as a Router
func AdaptChi(m *chi.Mux) Router { return chiRouter{root: m, r: m} }

func (c chiRouter) sub(r chi.Router) Router { return chiRouter{root: c.root, r: r} }

func (c chiRouter) Method(method, p string, h Handler) { c.r.Method(method, p, http.HandlerFunc(h)) }

func (c chiRouter) Get(p string, h Handler)    { c.Method(http.MethodGet, p, h) }
func (c chiRouter) Post(p string, h Handler)   { c.Method(http.MethodPost, p, h) }
func (c chiRouter) Put(p string, h Handler)    { c.Method(http.MethodPut, p, h) }
func (c chiRouter) Delete(p string, h Handler) { c.Method(http.MethodDelete, p, h) }

func (c chiRouter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }

func (c chiRouter) With(mw ...func(http.Handler) http.Handler) Router {
	return c.sub(c.r.With(mw...))
}

func (c chiRouter) Group(fn func(Router)) {
	c.r.Group(func(g chi.Router) { fn(c.sub(g)) })
}

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(g chi.Router) { fn(c.sub(g)) })
}

// Mux returns the top-level mux for the root router and the sub router otherwise
func (c chiRouter) Mux() http.Handler {
	if c.r == chi.Router(c.root) {
		return c.root
	}
	return c.r
}
