package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"shapeshift/internal/modkit"
	"shapeshift/internal/modkit/module"
	"shapeshift/internal/platform/config"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"
	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/platform/store"

	analyticsmod "shapeshift/internal/services/analytics/module"
	ledgermod "shapeshift/internal/services/credits/module"
	generationmod "shapeshift/internal/services/generation/module"
	pollermod "shapeshift/internal/services/poller/module"

	"golang.org/x/sync/errgroup"
)

func main() {
	logger.Init(logger.FromEnv())
	l := logger.Named("poller")

	var (
		fConc  = flag.Int("concurrency", 0, "tasks reconciled at once (0 keeps POLLER_CONCURRENCY)")
		fBatch = flag.Int("batch", 0, "max tasks leased per tick (0 keeps POLLER_BATCH)")
		fID    = flag.String("id", "", "worker id stamped on leases")
	)
	flag.Parse()

	root := config.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.ConfigFromEnv(root, "shapeshift", "poller"), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	m := metrics.New()
	deps := modkit.FromStore(st, modkit.Deps{Log: *l, Cfg: root, Metrics: m})

	ledger := ledgermod.New(deps)
	analytics := analyticsmod.New(deps)
	generation := generationmod.New(deps, modkit.WithPorts(generationmod.Needs{
		Ledger: module.MustPortsOf[ledgermod.Ports](ledger).Ledger,
		Events: module.MustPortsOf[analyticsmod.Ports](analytics).Recorder,
	}))
	poller := pollermod.New(deps, module.MustPortsOf[generationmod.Ports](generation).Reconcile, pollermod.Options{
		WorkerID:    *fID,
		Concurrency: *fConc,
		Batch:       *fBatch,
	})
	for _, mod := range []module.Module{ledger, analytics, generation, poller} {
		module.Register(mod.Name(), mod.Ports())
	}

	// metrics only; the poller has no API
	srv := phttp.NewServer(root.Prefix("POLLER_"))
	srv.Router().Handle("/metrics", m.Handler())

	worker := module.MustPortsOf[pollermod.Ports](poller).Worker
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return analytics.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("poller worker failed")
	}
	l.Info().Msg("poller stopped")
}
