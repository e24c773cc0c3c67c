// Package repo writes and reads generation events in ClickHouse
package repo

import (
	"context"
	"time"

	"shapeshift/internal/platform/store"
	"shapeshift/internal/services/analytics/domain"
)

// Table is the ClickHouse table events land in
const Table = "generation_events"

const ddl = `
	CREATE TABLE IF NOT EXISTS ` + Table + ` (
		at      DateTime64(3, 'UTC'),
		event   LowCardinality(String),
		kind    LowCardinality(String),
		user_id String,
		task_id String,
		credits Int32,
		reason  String
	)
	ENGINE = MergeTree
	PARTITION BY toYYYYMM(at)
	ORDER BY (user_id, at)
`

// Storage is the event sink surface
type Storage interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, xs []domain.Event) error
	Activity(ctx context.Context, userID string, since time.Time) ([]domain.Activity, error)
}

type chStore struct{ ch store.Clickhouse }

// NewClickhouse returns the ClickHouse sink
func NewClickhouse(ch store.Clickhouse) Storage { return &chStore{ch: ch} }

func (s *chStore) EnsureSchema(ctx context.Context) error { return s.ch.Exec(ctx, ddl) }

func (s *chStore) Insert(ctx context.Context, xs []domain.Event) error {
	if len(xs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(xs))
	for _, e := range xs {
		rows = append(rows, []any{
			e.At.UTC(), string(e.Type), string(e.Kind), e.UserID, e.TaskID, int32(e.Credits), e.Reason,
		})
	}
	return s.ch.Insert(ctx, Table, rows)
}

func (s *chStore) Activity(ctx context.Context, userID string, since time.Time) ([]domain.Activity, error) {
	rs, err := s.ch.Query(ctx, `
		SELECT event, count() AS n
		FROM `+Table+`
		WHERE user_id = ? AND at >= ?
		GROUP BY event
		ORDER BY event`, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []domain.Activity
	for rs.Next() {
		var ev string
		var n uint64
		if err := rs.Scan(&ev, &n); err != nil {
			return nil, err
		}
		out = append(out, domain.Activity{Type: domain.EventType(ev), Count: int64(n)})
	}
	return out, rs.Err()
}
