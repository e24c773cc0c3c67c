package testkit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestAssertions(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
	MustNotPanic(t, func() {})
	MustContain(t, "credits refunded for task_1", "task_1")
}

var seamFn = func() string { return "real" }

func TestSwapRestores(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Serial(t)
		Swap(t, &seamFn, func() string { return "fake" })
		if seamFn() != "fake" {
			t.Fatalf("swap not applied")
		}
	})
	if seamFn() != "real" {
		t.Fatalf("swap not restored")
	}
}

func TestEventually(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	Eventually(t, time.Second, func() bool { return n.Load() == 1 })
}

func TestRedis(t *testing.T) {
	t.Parallel()
	mr, rc := Redis(t)
	if err := rc.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("miniredis value = %q", got)
	}
}
