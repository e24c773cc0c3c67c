// Package module wires the generation endpoints into the API
package module

import (
	"net/http"

	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	str "shapeshift/internal/platform/strings"
	genhttp "shapeshift/internal/services/api/generations/http"
	"shapeshift/internal/services/generation/domain"
)

// Ports are what the generations API needs from other modules
type Ports struct {
	Generation domain.GenerationPort
}

// Module implements the generations API module
type Module struct {
	name      string
	prefix    string
	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the module; the generation port arrives through modkit.WithPorts
// Upload and rate limits come from GENERATION_MAX_UPLOAD, GENERATION_SUBMIT_RPS and GENERATION_SUBMIT_BURST
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("generations"), modkit.WithPrefix("/generations")}, opts...)...)
	ports, ok := b.Ports.(Ports)
	if !ok || ports.Generation == nil {
		panic("generations api: generation port is required")
	}

	g := deps.Cfg.Prefix("GENERATION_")
	o := genhttp.Options{
		MaxUpload:   g.MayBytes("MAX_UPLOAD", 10<<20),
		SubmitRPS:   g.MayFloat64("SUBMIT_RPS", 0.5),
		SubmitBurst: g.MayInt("SUBMIT_BURST", 5),
	}

	m := &Module{
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		ports:     ports,
		subrouter: b.Subrouter,
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		genhttp.Register(r, ports.Generation, o)
		external(r)
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(m.subrouter(rr))
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the injected ports
func (m *Module) Ports() any { return m.ports }
