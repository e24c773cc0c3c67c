// Package module wires the generation service and exposes its ports
package module

import (
	"shapeshift/internal/adapters/provider/meshy"
	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	andom "shapeshift/internal/services/analytics/domain"
	credom "shapeshift/internal/services/credits/domain"
	"shapeshift/internal/services/generation/domain"
	"shapeshift/internal/services/generation/repo"
	"shapeshift/internal/services/generation/service"
)

// Needs are the ports the generation module consumes
// Provider defaults to a Meshy client built from MESHY_*; Events defaults to discarding
type Needs struct {
	Ledger   credom.LedgerPort
	Events   andom.RecorderPort
	Provider service.Provider
}

// Ports exposed by the generation module
type Ports struct {
	Generation domain.GenerationPort
	Reconcile  domain.ReconcilePort
	Models     domain.ModelsPort
}

// Module implements the generation module; routes live in the API module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the module; pass Needs with modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("generation")}, opts...)...)
	needs, ok := b.Ports.(Needs)
	if !ok || needs.Ledger == nil {
		panic("generation module: expected WithPorts(Needs) with a Ledger")
	}
	if needs.Provider == nil {
		mo := meshy.FromConfig(deps.Cfg, "shapeshift")
		mo.Metrics = deps.Metrics
		needs.Provider = meshy.NewClient(mo)
	}

	o := FromConfig(deps.Cfg)
	svc := service.New(service.Deps{
		DB:       deps.PG,
		Binder:   repo.NewPG(),
		Provider: needs.Provider,
		Ledger:   needs.Ledger,
		Events:   needs.Events,
		Cache:    deps.RDS,
		Metrics:  deps.Metrics,
	}, service.Config{
		CreditCost:   o.CreditCost,
		CheckTimeout: o.CheckTimeout,
		StatusTTL:    o.StatusTTL,
		Poll:         o.Poll,
		MaxBackoff:   o.MaxBackoff,
	})

	return &Module{deps: deps, ports: Ports{Generation: svc, Reconcile: svc, Models: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "generation" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
