// Package domain defines generation analytics events and the ports that record and read them
package domain

import (
	"context"
	"time"

	"shapeshift/internal/core/taskstate"
)

// EventType is what happened to a task
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventRefunded  EventType = "refunded"
	EventTimedOut  EventType = "timed_out"
)

// Event is one row of generation_events
type Event struct {
	Type    EventType
	Kind    taskstate.Kind
	UserID  string
	TaskID  string
	Credits int
	Reason  string
	At      time.Time
}

// Activity counts one event type
type Activity struct {
	Type  EventType `json:"type"`
	Count int64     `json:"count"`
}

// RecorderPort accepts events; it never fails the caller
type RecorderPort interface {
	Record(ctx context.Context, e Event)
}

// ActivityPort reads per-user event counts
type ActivityPort interface {
	Activity(ctx context.Context, userID string, since time.Time) ([]Activity, error)
}

// Discard is used when ClickHouse is not configured
type Discard struct{}

func (Discard) Record(context.Context, Event) {}

func (Discard) Activity(context.Context, string, time.Time) ([]Activity, error) { return nil, nil }
