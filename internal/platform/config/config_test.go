package config

import (
	"testing"
	"time"

	kit "shapeshift/internal/platform/testkit"
)

func TestPrefixComposes(t *testing.T) {
	c := New().Prefix("SERVICE_").Prefix("PGSQL_")
	if got := c.Key("DBURL"); got != "SERVICE_PGSQL_DBURL" {
		t.Fatalf("Key = %q", got)
	}
}

func TestMustGetters(t *testing.T) {
	c := New().Prefix("MESHY_")
	t.Setenv("MESHY_API_KEY", "  msy_key ")
	t.Setenv("MESHY_MAX_RETRIES", "4")
	t.Setenv("MESHY_TIMEOUT", "30s")
	t.Setenv("MESHY_BASE_URL", "https://api.meshy.ai/openapi")
	t.Setenv("MESHY_DEBUG", "true")
	t.Setenv("MESHY_PORT", "4000")

	if c.MustString("API_KEY") != "msy_key" {
		t.Fatalf("MustString did not trim")
	}
	if c.MustInt("MAX_RETRIES") != 4 || !c.MustBool("DEBUG") || c.MustDuration("TIMEOUT") != 30*time.Second {
		t.Fatalf("typed getters mismatch")
	}
	if u := c.MustURL("BASE_URL"); u.Host != "api.meshy.ai" {
		t.Fatalf("MustURL host = %q", u.Host)
	}
	if c.MustPort("PORT") != ":4000" {
		t.Fatalf("MustPort mismatch")
	}
}

func TestMustGettersPanic(t *testing.T) {
	c := New().Prefix("BAD_")
	t.Setenv("BAD_INT", "x")
	t.Setenv("BAD_URL", "/relative")
	t.Setenv("BAD_PORT", "70000")
	t.Setenv("BAD_BLANK", "   ")

	kit.MustPanic(t, func() { c.MustString("MISSING") })
	kit.MustPanic(t, func() { c.MustInt("INT") })
	kit.MustPanic(t, func() { c.MustURL("URL") })
	kit.MustPanic(t, func() { c.MustPort("PORT") })
	kit.MustPanic(t, func() { c.Require("BLANK") })
}

func TestMayGettersFallBack(t *testing.T) {
	c := New().Prefix("POLLER_")
	t.Setenv("POLLER_MAX_POLLS", "nope")
	t.Setenv("POLLER_INTERVAL", "2s")
	t.Setenv("POLLER_RATIO", "0.5")
	t.Setenv("POLLER_ENABLED", "maybe")

	if c.MayInt("MAX_POLLS", 30) != 30 {
		t.Fatalf("invalid int should fall back")
	}
	if c.MayDuration("INTERVAL", 10*time.Second) != 2*time.Second {
		t.Fatalf("MayDuration ignored value")
	}
	if c.MayFloat64("RATIO", 1) != 0.5 {
		t.Fatalf("MayFloat64 ignored value")
	}
	if !c.MayBool("ENABLED", true) {
		t.Fatalf("invalid bool should fall back")
	}
	if c.MayString("UNSET", "def") != "def" {
		t.Fatalf("MayString default")
	}
}

func TestMayCSV(t *testing.T) {
	c := New()
	t.Setenv("ORIGINS", " https://a.test , ,https://b.test ")
	got := c.MayCSV("ORIGINS", nil)
	if len(got) != 2 || got[0] != "https://a.test" || got[1] != "https://b.test" {
		t.Fatalf("MayCSV = %v", got)
	}
	t.Setenv("EMPTY", " , ")
	if got := c.MayCSV("EMPTY", []string{"*"}); len(got) != 1 || got[0] != "*" {
		t.Fatalf("all-blank CSV should fall back, got %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New()
	t.Setenv("STYLE", "SCULPTURE")
	if got := c.MayEnum("STYLE", "realistic", "realistic", "sculpture"); got != "sculpture" {
		t.Fatalf("MayEnum = %q", got)
	}
	if got := c.MayEnum("UNSET", "", "a"); got != "" {
		t.Fatalf("empty default should pass through")
	}
	t.Setenv("STYLE", "cartoon")
	kit.MustPanic(t, func() { c.MayEnum("STYLE", "realistic", "realistic", "sculpture") })
}

func TestParseBytes(t *testing.T) {
	t.Parallel()
	cases := map[string]int64{
		"512":   512,
		"64KiB": 64 << 10,
		"10mib": 10 << 20,
		"1 GiB": 1 << 30,
		"2048B": 2048,
	}
	for in, want := range cases {
		got, err := ParseBytes(in)
		if err != nil || got != want {
			t.Fatalf("ParseBytes(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "ten", "-1", "1TB"} {
		if _, err := ParseBytes(bad); err == nil {
			t.Fatalf("ParseBytes(%q) should fail", bad)
		}
	}
}
