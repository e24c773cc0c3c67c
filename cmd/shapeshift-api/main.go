// @title         shapeshift API
// @version       1.0
// @description   Image and text to 3D generation with a prepaid credit ledger

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"shapeshift/internal/adapters/auth/jwt"
	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/platform/config"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"
	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/platform/store"
	"shapeshift/internal/platform/store/migrate"

	"shapeshift/internal/services/api"

	"golang.org/x/sync/errgroup"
)

func main() {
	logger.Init(logger.FromEnv())
	l := logger.Get()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stCfg := store.ConfigFromEnv(root, "shapeshift", "api")
	if apiCfg.MayBool("MIGRATE", false) {
		if err := migrate.Up(ctx, stCfg.PG.URL, *l); err != nil {
			l.Panic().Err(err).Msg("migrations failed")
		}
	}

	st, err := store.Open(ctx, stCfg, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	verifier, err := jwt.New(jwt.FromConfig(root))
	if err != nil {
		l.Panic().Err(err).Msg("jwt verifier")
	}

	var m *metrics.Metrics
	if apiCfg.MayBool("METRICS", true) {
		m = metrics.New()
	}
	srv := phttp.NewServer(apiCfg)

	app := api.Mount(srv.Router(), api.Options{
		Config:         root,
		Store:          st,
		Metrics:        m,
		Auth:           httpkit.NewPortFunc(verifier.Verify),
		CORSOrigins:    apiCfg.MayCSV("CORS_ORIGINS", []string{"*"}),
		EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
		EmbedPoller:    apiCfg.MayBool("EMBED_POLLER", true),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return app.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Panic().Err(err).Msg("api stopped")
	}
	l.Info().Msg("api stopped")
}
