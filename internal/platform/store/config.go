package store

import (
	"time"

	"shapeshift/internal/platform/config"
)

// Config aggregates per-backend settings
type Config struct {
	AppName string
	Role    string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures the pgx pool
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures the analytics sink
type CHConfig struct {
	Enabled bool
	URL     string
}

// RedisConfig configures the cache and guard backend
type RedisConfig struct {
	Enabled  bool
	Addr     string
	DB       int
	Password string
}

// ConfigFromEnv reads SERVICE_PGSQL_*, SERVICE_CLICKHOUSE_* and SERVICE_REDIS_*
// Postgres is always required
func ConfigFromEnv(cfg config.Conf, appName, role string) Config {
	pg := cfg.Prefix("SERVICE_PGSQL_")
	ch := cfg.Prefix("SERVICE_CLICKHOUSE_")
	rds := cfg.Prefix("SERVICE_REDIS_")

	out := Config{
		AppName: appName,
		Role:    role,
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 16)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 250),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH: CHConfig{Enabled: ch.MayBool("ENABLED", false)},
		RDS: RedisConfig{
			Enabled:  rds.MayBool("ENABLED", false),
			Addr:     rds.MayString("ADDR", "localhost:6379"),
			DB:       rds.MayInt("DB", 0),
			Password: rds.MayString("PASSWORD", ""),
		},
	}
	if out.CH.Enabled {
		out.CH.URL = ch.MustString("DBURL")
	}
	return out
}
