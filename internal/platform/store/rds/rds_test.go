package rds_test

import (
	"context"
	"testing"
	"time"

	"shapeshift/internal/platform/store/rds"
	kit "shapeshift/internal/platform/testkit"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	mr, _ := kit.Redis(t)
	c, err := rds.Open(context.Background(), rds.Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = c.Close()

	if _, err := rds.Open(context.Background(), rds.Config{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatalf("expected dial failure")
	}
}

func TestClaimIsExclusiveUntilExpiry(t *testing.T) {
	t.Parallel()
	mr, rc := kit.Redis(t)
	ctx := context.Background()

	ok, err := rds.Claim(ctx, rc, "refund:task_1", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	ok, err = rds.Claim(ctx, rc, "refund:task_1", 5*time.Minute)
	if err != nil || ok {
		t.Fatalf("second claim should lose: %v %v", ok, err)
	}
	if ttl := mr.TTL("refund:task_1"); ttl != 5*time.Minute {
		t.Fatalf("ttl = %s", ttl)
	}

	mr.FastForward(5*time.Minute + time.Second)
	if ok, _ := rds.Claim(ctx, rc, "refund:task_1", time.Minute); !ok {
		t.Fatalf("claim after expiry should win")
	}
	if err := rds.Release(ctx, rc, "refund:task_1"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("refund:task_1") {
		t.Fatalf("release left key behind")
	}
}

type status struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

func TestCache(t *testing.T) {
	t.Parallel()
	mr, rc := kit.Redis(t)
	ctx := context.Background()
	c := rds.NewCache[status](rc, "status:", 3*time.Second)

	if _, ok, err := c.Get(ctx, "t1"); ok || err != nil {
		t.Fatalf("cold cache hit: %v %v", ok, err)
	}
	if err := c.Set(ctx, "t1", status{"PROCESSING", 40}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, "t1")
	if err != nil || !ok || got.Progress != 40 {
		t.Fatalf("get = %+v %v %v", got, ok, err)
	}
	mr.FastForward(4 * time.Second)
	if _, ok, _ := c.Get(ctx, "t1"); ok {
		t.Fatalf("entry should have expired")
	}

	var nilCache *rds.Cache[status]
	if _, ok, err := nilCache.Get(ctx, "x"); ok || err != nil {
		t.Fatalf("nil cache should miss")
	}
	if err := rds.NewCache[status](nil, "p:", time.Second).Set(ctx, "x", status{}); err != nil {
		t.Fatalf("nil client set: %v", err)
	}
}
