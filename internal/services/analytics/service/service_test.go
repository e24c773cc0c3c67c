package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shapeshift/internal/core/taskstate"
	"shapeshift/internal/platform/testkit"
	"shapeshift/internal/services/analytics/domain"
)

type memSink struct {
	mu      sync.Mutex
	schema  int
	batches [][]domain.Event
	fail    bool
}

func (m *memSink) EnsureSchema(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema++
	return nil
}

func (m *memSink) Insert(_ context.Context, xs []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("clickhouse down")
	}
	m.batches = append(m.batches, append([]domain.Event(nil), xs...))
	return nil
}

func (m *memSink) Activity(_ context.Context, userID string, _ time.Time) ([]domain.Activity, error) {
	return []domain.Activity{{Type: domain.EventSubmitted, Count: 3}}, nil
}

func (m *memSink) events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func TestRunFlushesBatches(t *testing.T) {
	t.Parallel()
	sink := &memSink{}
	s := New(sink, Config{Buffer: 16, BatchSize: 2, FlushEvery: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 4; i++ {
		s.Record(ctx, domain.Event{Type: domain.EventSubmitted, Kind: taskstate.Image, UserID: "u1", TaskID: "t"})
	}
	testkit.Eventually(t, time.Second, func() bool { return len(sink.events()) == 4 })

	s.Record(ctx, domain.Event{Type: domain.EventFailed, UserID: "u1"})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	evs := sink.events()
	if len(evs) != 5 || evs[4].Type != domain.EventFailed {
		t.Fatalf("drain lost the tail: %+v", evs)
	}
	if evs[0].At.IsZero() {
		t.Fatalf("timestamp not stamped")
	}
	if sink.schema != 1 {
		t.Fatalf("schema ensured %d times", sink.schema)
	}
}

func TestRecordDropsWhenFull(t *testing.T) {
	t.Parallel()
	s := New(&memSink{}, Config{Buffer: 1})
	s.Record(context.Background(), domain.Event{Type: domain.EventSubmitted})
	s.Record(context.Background(), domain.Event{Type: domain.EventSubmitted})
	if s.dropped != 1 || len(s.in) != 1 {
		t.Fatalf("dropped=%d buffered=%d", s.dropped, len(s.in))
	}
}

func TestFlushFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	sink := &memSink{fail: true}
	s := New(sink, Config{BatchSize: 1, FlushEvery: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	s.Record(ctx, domain.Event{Type: domain.EventRefunded})
	testkit.Eventually(t, time.Second, func() bool { return len(s.in) == 0 })
	cancel()
	<-done
	if len(sink.events()) != 0 {
		t.Fatalf("failed insert should not be recorded")
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	t.Parallel()
	var s *Service
	s.Record(context.Background(), domain.Event{})
	if xs, err := s.Activity(context.Background(), "u1", time.Now()); xs != nil || err != nil {
		t.Fatalf("nil Activity = %v %v", xs, err)
	}
	out, err := New(&memSink{}, Config{}).Activity(context.Background(), "u1", time.Now())
	if err != nil || len(out) != 1 || out[0].Count != 3 {
		t.Fatalf("Activity = %v %v", out, err)
	}
}
