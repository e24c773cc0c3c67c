package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"shapeshift/internal/platform/config"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/store/migrate"
)

func main() {
	logger.Init(logger.FromEnv())
	l := logger.Named("migrate")

	var (
		fDown    = flag.Int("down", 0, "roll back this many migrations instead of applying")
		fForce   = flag.Int("force", -1, "mark this version clean without running it")
		fVersion = flag.Bool("version", false, "print the applied version and exit")
	)
	flag.Parse()

	dsn := config.New().Prefix("SERVICE_PGSQL_").MustString("DBURL")
	m, err := migrate.New(dsn, *l)
	if err != nil {
		l.Fatal().Err(err).Msg("migrator")
	}
	defer func() { _ = m.Close() }()

	ctx := context.Background()
	switch {
	case *fVersion:
		v, dirty, err := m.Version()
		if err != nil {
			l.Fatal().Err(err).Msg("version")
		}
		fmt.Fprintf(os.Stdout, "version=%d dirty=%v\n", v, dirty)
		return
	case *fForce >= 0:
		err = m.Force(*fForce)
	case *fDown > 0:
		err = m.Down(ctx, *fDown)
	default:
		err = m.Up(ctx)
	}
	if err != nil {
		l.Fatal().Err(err).Msg("migrate failed")
	}
	l.Info().Msg("migrations done")
}
