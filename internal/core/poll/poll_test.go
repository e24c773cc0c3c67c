package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"shapeshift/internal/platform/testkit"
)

// instant makes every wait fire immediately and counts the waits
func instant(t *testing.T) *int {
	t.Helper()
	testkit.Serial(t)
	waits := 0
	testkit.Swap(t, &newTimer, func(time.Duration) (<-chan time.Time, func() bool) {
		waits++
		c := make(chan time.Time, 1)
		c <- time.Time{}
		return c, func() bool { return true }
	})
	return &waits
}

func TestPolicy(t *testing.T) {
	t.Parallel()
	p := Default()
	if p.Interval != 10*time.Second || p.MaxPolls != 30 {
		t.Fatalf("Default = %+v", p)
	}
	if p.Exhausted(29) || !p.Exhausted(30) || !p.Exhausted(31) {
		t.Fatalf("Exhausted boundary wrong")
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := p.Next(now); !got.Equal(now.Add(10 * time.Second)) {
		t.Fatalf("Next = %v", got)
	}
	if p.Budget() != 290*time.Second {
		t.Fatalf("Budget = %v", p.Budget())
	}
	if (Policy{}).Normalize() != Default() {
		t.Fatalf("zero policy should normalize to default")
	}
}

func TestUntilStopsAtMaxPolls(t *testing.T) {
	waits := instant(t)
	calls := 0
	_, err := Until(context.Background(), Policy{Interval: time.Second, MaxPolls: 30}, func(_ context.Context, attempt int) (string, bool, error) {
		calls++
		if attempt != calls {
			t.Fatalf("attempt %d on call %d", attempt, calls)
		}
		return "PROCESSING", false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v", err)
	}
	if calls != 30 {
		t.Fatalf("calls = %d, want 30", calls)
	}
	if *waits != 29 {
		t.Fatalf("waits = %d, want 29 (no wait after the last call)", *waits)
	}
}

func TestUntilDone(t *testing.T) {
	instant(t)
	got, err := Until(context.Background(), Default(), func(_ context.Context, attempt int) (string, bool, error) {
		if attempt == 3 {
			return "SUCCEEDED", true, nil
		}
		return "PROCESSING", false, nil
	})
	if err != nil || got != "SUCCEEDED" {
		t.Fatalf("Until = %q, %v", got, err)
	}
}

func TestUntilError(t *testing.T) {
	instant(t)
	boom := errors.New("boom")
	calls := 0
	_, err := Until(context.Background(), Default(), func(context.Context, int) (int, bool, error) {
		calls++
		return 0, false, boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestUntilContextCancel(t *testing.T) {
	testkit.Serial(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Until(ctx, Policy{Interval: time.Hour, MaxPolls: 5}, func(context.Context, int) (int, bool, error) {
		calls++
		cancel()
		return 0, false, nil
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}
