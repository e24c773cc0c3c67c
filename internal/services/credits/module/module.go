// Package module implements the credit ledger module
package module

import (
	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/services/credits/domain"
	"shapeshift/internal/services/credits/repo"
	"shapeshift/internal/services/credits/service"
)

// Ports exposed by the ledger module
type Ports struct {
	Ledger domain.LedgerPort
}

// Module implements the ledger module; it has no routes of its own
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the ledger module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, repo.NewPG(), deps.RDS, deps.Metrics, service.Config{
		DefaultCredits: opts.DefaultCredits,
		RefundWindow:   opts.RefundWindow,
	})
	return &Module{deps: deps, ports: Ports{Ledger: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "ledger" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
