// Package module wires the poller worker and exposes its port
package module

import (
	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	gendom "shapeshift/internal/services/generation/domain"
	dom "shapeshift/internal/services/poller/domain"
	"shapeshift/internal/services/poller/service"
)

// Ports holds the ports exposed by the poller module
type Ports struct {
	Worker dom.WorkerPort
}

// Module defines the poller worker module
type Module struct {
	ports Ports
}

// New constructs the poller module; zero override fields keep the configured values
func New(deps modkit.Deps, rec gendom.ReconcilePort, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.WorkerID != "" {
		opts.WorkerID = overrides.WorkerID
	}
	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}
	if overrides.Batch != 0 {
		opts.Batch = overrides.Batch
	}
	if overrides.Every != 0 {
		opts.Every = overrides.Every
	}
	if overrides.LeaseFor != 0 {
		opts.LeaseFor = overrides.LeaseFor
	}

	svc := service.New(rec, deps.Metrics, service.Config{
		WorkerID:    opts.WorkerID,
		Concurrency: opts.Concurrency,
		Batch:       opts.Batch,
		Every:       opts.Every,
		LeaseFor:    opts.LeaseFor,
	})
	return &Module{ports: Ports{Worker: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "poller" }

// Prefix is empty; the poller has no routes
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
