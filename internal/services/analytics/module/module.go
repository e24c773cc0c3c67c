// Package module wires the analytics sink; without ClickHouse its ports discard
package module

import (
	"context"

	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/services/analytics/domain"
	"shapeshift/internal/services/analytics/repo"
	"shapeshift/internal/services/analytics/service"
)

// Ports exposed by the analytics module
type Ports struct {
	Recorder domain.RecorderPort
	Activity domain.ActivityPort
}

// Module implements the analytics module
type Module struct {
	svc   *service.Service
	ports Ports
}

// New constructs the module
func New(deps modkit.Deps) *Module {
	if deps.CH == nil {
		return &Module{ports: Ports{Recorder: domain.Discard{}, Activity: domain.Discard{}}}
	}
	opts := FromConfig(deps.Cfg)
	svc := service.New(repo.NewClickhouse(deps.CH), service.Config{
		Buffer:     opts.Buffer,
		BatchSize:  opts.BatchSize,
		FlushEvery: opts.FlushEvery,
	})
	return &Module{svc: svc, ports: Ports{Recorder: svc, Activity: svc}}
}

// Run flushes events until ctx ends; it returns at once when analytics is disabled
func (m *Module) Run(ctx context.Context) error {
	if m.svc == nil {
		return nil
	}
	return m.svc.Run(ctx)
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "analytics" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
