// Package migrate applies the embedded Postgres schema with golang-migrate
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"shapeshift/internal/platform/logger"

	gomigrate "github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var files embed.FS

// Table records applied versions
const Table = "schema_migrations"

// Migrator runs migrations against one database
type Migrator struct {
	m   *gomigrate.Migrate
	db  *sql.DB
	log logger.Logger
}

// New opens dsn through the pgx stdlib driver and prepares the embedded source
func New(dsn string, log logger.Logger) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: open: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: Table})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: driver: %w", err)
	}
	src, err := iofs.New(files, "sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: source: %w", err)
	}
	m, err := gomigrate.NewWithInstance("iofs", src, "pgx5", drv)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: init: %w", err)
	}
	m.Log = migrateLog{log}
	return &Migrator{m: m, db: db, log: log}, nil
}

// Up applies every pending migration; nothing to do is not an error
func (g *Migrator) Up(ctx context.Context) error {
	return g.run(ctx, "up", g.m.Up)
}

// Down rolls back n migrations
func (g *Migrator) Down(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	return g.run(ctx, "down", func() error { return g.m.Steps(-n) })
}

// Force marks version as applied and clean without running it
func (g *Migrator) Force(version int) error { return g.m.Force(version) }

// Version returns the applied version; zero when nothing has run
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, gomigrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and the database handle
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

// run stops the migration between steps when ctx is cancelled
func (g *Migrator) run(ctx context.Context, dir string, fn func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			g.m.GracefulStop <- true
		case <-done:
		}
	}()

	err := fn()
	if errors.Is(err, gomigrate.ErrNoChange) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}
	v, dirty, _ := g.Version()
	g.log.Info().Str("direction", dir).Uint("version", v).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}

// Up is the one-shot form used at API boot and in tests
func Up(ctx context.Context, dsn string, log logger.Logger) error {
	g, err := New(dsn, log)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	return g.Up(ctx)
}

type migrateLog struct{ log logger.Logger }

func (l migrateLog) Printf(format string, v ...any) {
	l.log.Debug().Msgf(format, v...)
}

func (l migrateLog) Verbose() bool { return l.log.GetLevel() <= zerolog.DebugLevel }
