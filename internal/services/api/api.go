// Package api composes the modules behind the public HTTP API
package api

import (
	"context"
	"time"

	"shapeshift/internal/platform/config"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"
	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/platform/net/middleware"
	"shapeshift/internal/platform/store"

	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/modkit/module"
	"shapeshift/internal/modkit/swaggerkit"

	analyticsmod "shapeshift/internal/services/analytics/module"
	apicredits "shapeshift/internal/services/api/credits/module"
	apigenerations "shapeshift/internal/services/api/generations/module"
	historymod "shapeshift/internal/services/api/history/module"
	metamod "shapeshift/internal/services/api/meta/module"
	ledgermod "shapeshift/internal/services/credits/module"
	generationmod "shapeshift/internal/services/generation/module"
	gensvc "shapeshift/internal/services/generation/service"
	pollermod "shapeshift/internal/services/poller/module"

	"golang.org/x/sync/errgroup"
)

// Options are the API options
type Options struct {
	// Config is the root view; modules add their own prefixes
	Config  config.Conf
	Store   *store.Store
	Metrics *metrics.Metrics
	Auth    middleware.AuthPort

	// Provider replaces the Meshy client, for tests
	Provider gensvc.Provider

	CORSOrigins    []string
	EnableSwagger  bool
	EnableProfiler bool
	// EmbedPoller runs the status poller inside the API process
	EmbedPoller bool
}

// App holds the background work that lives alongside the routes
type App struct {
	analytics *analyticsmod.Module
	poller    *pollermod.Module
}

// Mount mounts the API onto r and returns the background workers to run next to it
func Mount(r phttp.Router, opt Options) *App {
	if opt.Auth == nil {
		panic("api: auth port is required")
	}
	deps := modkit.FromStore(opt.Store, modkit.Deps{
		Log:     *logger.Get(),
		Cfg:     opt.Config,
		Metrics: opt.Metrics,
		Auth:    opt.Auth,
	})

	// ports flow ledger -> analytics -> generation -> api modules
	ledger := ledgermod.New(deps)
	ledgerPort := module.MustPortsOf[ledgermod.Ports](ledger).Ledger

	analytics := analyticsmod.New(deps)
	events := module.MustPortsOf[analyticsmod.Ports](analytics)

	generation := generationmod.New(deps, modkit.WithPorts(generationmod.Needs{
		Ledger:   ledgerPort,
		Events:   events.Recorder,
		Provider: opt.Provider,
	}))
	gen := module.MustPortsOf[generationmod.Ports](generation)

	app := &App{analytics: analytics}
	if opt.EmbedPoller {
		app.poller = pollermod.New(deps, gen.Reconcile, pollermod.Options{})
	}

	public := []module.Module{
		metamod.New(deps),
	}
	protected := []module.Module{
		ledger,
		analytics,
		generation,
		apicredits.New(deps, modkit.WithPorts(apicredits.Ports{Ledger: ledgerPort})),
		apigenerations.New(deps, modkit.WithPorts(apigenerations.Ports{Generation: gen.Generation})),
		historymod.New(deps, modkit.WithPorts(historymod.Ports{
			Models:       gen.Models,
			Transactions: ledgerPort,
			Activity:     events.Activity,
		})),
	}

	stack := httpkit.CommonStack(httpkit.StackOptions{
		CORSOrigins: opt.CORSOrigins,
		Timeout:     opt.Config.Prefix("CORE_API_").MayDuration("REQUEST_TIMEOUT", 60*time.Second),
		SlowRequest: opt.Config.Prefix("CORE_API_").MayDuration("SLOW_REQUEST", 2*time.Second),
		Metrics:     opt.Metrics,
	})

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)
	if opt.Metrics != nil {
		r.Handle("/metrics", opt.Metrics.Handler())
	}

	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		for _, m := range public {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
		httpkit.Protected(api, opt.Auth, func(pr httpkit.Router) {
			for _, m := range protected {
				// register each module's ports under its own name for cross-module lookups
				module.Register(m.Name(), m.Ports())
				m.MountRoutes(pr)
			}
		})
	})
	return app
}

// Run drives the background workers until ctx ends
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.analytics.Run(gctx) })
	if a.poller != nil {
		w := module.MustPortsOf[pollermod.Ports](a.poller).Worker
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}
