package pg

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompact(t *testing.T) {
	t.Parallel()
	in := "SELECT id,\n\t  credits\n FROM credit_accounts   WHERE user_id = $1"
	if got := Compact(in); got != "SELECT id, credits FROM credit_accounts WHERE user_id = $1" {
		t.Fatalf("Compact = %q", got)
	}
}

func TestTracerLevels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	tr.OnQuery(context.Background(), QueryEvent{SQL: "SELECT 1", ElapsedUS: 1500})
	tr.OnQuery(context.Background(), QueryEvent{SQL: "UPDATE x", Slow: true})
	tr.OnQuery(context.Background(), QueryEvent{SQL: "INSERT y", Err: errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines even with an error-level root, got %d: %s", len(lines), buf.String())
	}
	for i, want := range []string{`"level":"debug"`, `"level":"warn"`, `"level":"error"`} {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %s, want %s", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[0], `"elapsed_ms":1.5`) {
		t.Fatalf("elapsed missing: %s", lines[0])
	}
}

func TestParseConfig(t *testing.T) {
	t.Parallel()
	pcfg, err := ParseConfig(Config{URL: "postgres://u:p@localhost:5432/shapeshift", AppName: "shapeshift-api", MaxConns: 7})
	if err != nil {
		t.Fatal(err)
	}
	if pcfg.MaxConns != 7 || pcfg.ConnConfig.RuntimeParams["application_name"] != "shapeshift-api" {
		t.Fatalf("config = %+v", pcfg)
	}
	if _, err := ParseConfig(Config{URL: "::nope"}); err == nil {
		t.Fatalf("bad url should fail")
	}
}
