package domain

import (
	"context"
	"time"
)

// GenerationPort is what the HTTP layer calls
type GenerationPort interface {
	SubmitImage(ctx context.Context, userID string, in ImageUpload) (Submitted, error)
	SubmitText(ctx context.Context, userID string, in TextInput) (Submitted, error)

	// Check answers from the database for terminal tasks and asks the provider otherwise
	Check(ctx context.Context, userID, taskID string) (View, error)
	// Status is Check with cache-busted URLs and a timestamp
	Status(ctx context.Context, userID, taskID string) (View, error)
}

// ReconcilePort is what the poller drives
type ReconcilePort interface {
	Lease(ctx context.Context, workerID string, limit int, leaseFor time.Duration) ([]Task, error)
	Reconcile(ctx context.Context, t Task) (Outcome, error)
}

// ModelsPort lists a user's tasks newest first with the total count
type ModelsPort interface {
	Models(ctx context.Context, userID string, limit, offset int) ([]Task, int, error)
}
