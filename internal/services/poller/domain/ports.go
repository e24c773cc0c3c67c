// Package domain defines the poller worker port
package domain

import "context"

// WorkerPort runs the poll loop until ctx ends
type WorkerPort interface {
	Run(ctx context.Context) error
}
