package domain

import "context"

// LedgerPort is the credit ledger used by generation and the HTTP layer
type LedgerPort interface {
	// Balance returns the account, opening it with the default grant on first use
	Balance(ctx context.Context, userID string) (Account, error)

	// Reserve debits cost and records a pending usage row
	Reserve(ctx context.Context, userID string, cost int, meta UsageMeta) (Reservation, error)
	// Confirm settles a reservation once the provider accepted the task
	Confirm(ctx context.Context, res Reservation, d UsageDetails) error
	// Release voids a reservation the provider rejected and restores its credits
	Release(ctx context.Context, res Reservation, reason string) error

	// Refund credits a failed task at most once; it reports whether credits moved
	Refund(ctx context.Context, req RefundRequest) (bool, error)
	// Refunded reports whether the ledger holds a refund row for taskID
	Refunded(ctx context.Context, taskID string) (bool, error)

	TopUp(ctx context.Context, req TopUpRequest) (Account, error)
	TransactionsPort
}

// TransactionsPort lists ledger rows newest first with the total count
type TransactionsPort interface {
	Transactions(ctx context.Context, userID string, page, size int) ([]Transaction, int, error)
}
