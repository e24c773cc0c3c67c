// Package module wires history into the API using modkit
package module

import (
	"net/http"

	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	str "shapeshift/internal/platform/strings"
	andom "shapeshift/internal/services/analytics/domain"
	histhttp "shapeshift/internal/services/api/history/http"
	histsvc "shapeshift/internal/services/api/history/service"
	credom "shapeshift/internal/services/credits/domain"
	gendom "shapeshift/internal/services/generation/domain"
)

// Ports are what history reads from other modules; Activity is optional
type Ports struct {
	Models       gendom.ModelsPort
	Transactions credom.TransactionsPort
	Activity     andom.ActivityPort
}

// Module implements the history module
type Module struct {
	name   string
	prefix string

	mws   []func(http.Handler) http.Handler
	ports Ports

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the history module
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("history"), modkit.WithPrefix("/history")}, opts...)...)
	ports, ok := b.Ports.(Ports)
	if !ok || ports.Models == nil || ports.Transactions == nil {
		panic("history: models and transactions ports are required")
	}
	svc := histsvc.New(ports.Models, ports.Transactions, ports.Activity)

	m := &Module{
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		ports:     ports,
		subrouter: b.Subrouter,
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		histhttp.Register(r, svc)
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
