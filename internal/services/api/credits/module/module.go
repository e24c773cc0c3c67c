// Package module wires the credit endpoints into the API
package module

import (
	"net/http"

	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	str "shapeshift/internal/platform/strings"
	credhttp "shapeshift/internal/services/api/credits/http"
	"shapeshift/internal/services/credits/domain"
)

// Ports are what the credits API needs from other modules
type Ports struct {
	Ledger domain.LedgerPort
}

// Module implements the credits API module
type Module struct {
	name      string
	prefix    string
	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the module; the ledger arrives through modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("credits"), modkit.WithPrefix("/credits")}, opts...)...)
	ports, ok := b.Ports.(Ports)
	if !ok || ports.Ledger == nil {
		panic("credits api: ledger port is required")
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
		credhttp.Register(r, ports.Ledger)
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
