// Package domain defines the credit ledger types and ports
package domain

import (
	"time"

	"shapeshift/internal/core/taskstate"
)

// SubscriptionType is the plan an account is on
type SubscriptionType string

const (
	PlanNone   SubscriptionType = "none"
	PlanNinja  SubscriptionType = "ninja"
	PlanPro    SubscriptionType = "pro"
	PlanProMax SubscriptionType = "promax"
)

// Paid reports whether t is a purchasable plan
func (t SubscriptionType) Paid() bool { return t == PlanNinja || t == PlanPro || t == PlanProMax }

// SubscriptionStatus is the lifecycle of a plan
type SubscriptionStatus string

const (
	SubActive    SubscriptionStatus = "active"
	SubCancelled SubscriptionStatus = "cancelled"
	SubExpired   SubscriptionStatus = "expired"
)

// Subscription is the plan attached to an account
type Subscription struct {
	Type   SubscriptionType   `json:"type"`
	Status SubscriptionStatus `json:"status"`
}

// Account is a user's balance
type Account struct {
	UserID       string       `json:"user_id"`
	Credits      int          `json:"credits"`
	Subscription Subscription `json:"subscription"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TxType classifies a ledger row
type TxType string

const (
	TxSubscription TxType = "subscription"
	TxTopUp        TxType = "topup"
	TxUsage        TxType = "usage"
	TxRefund       TxType = "refund"
)

// TxStatus is the settlement state of a ledger row
type TxStatus string

const (
	TxSuccess TxStatus = "success"
	TxFailed  TxStatus = "failed"
	TxPending TxStatus = "pending"
)

// Transaction is one ledger row; Credits is signed
type Transaction struct {
	ID          string
	UserID      string
	Type        TxType
	Amount      float64
	Credits     int
	PaymentRef  string
	ModelType   taskstate.Kind
	TaskID      string
	Prompt      string
	ImageURL    string
	ModelURL    string
	Description string
	Status      TxStatus
	CreatedAt   time.Time
}

// UsageMeta describes what a reservation pays for
type UsageMeta struct {
	Kind     taskstate.Kind
	Prompt   string
	ImageURL string
}

// Reservation is a pending debit awaiting the provider's answer
type Reservation struct {
	ID        string
	UserID    string
	Credits   int
	Kind      taskstate.Kind
	Remaining int
}

// UsageDetails are attached to a reservation once the provider accepted the task
type UsageDetails struct {
	TaskID   string
	Prompt   string
	ImageURL string
	ModelURL string
}

// RefundRequest returns credits for a task that will never produce a model
type RefundRequest struct {
	UserID  string
	TaskID  string
	Credits int
	Kind    taskstate.Kind
	Reason  string
}

// TopUpRequest records a purchase confirmed by the payment processor
type TopUpRequest struct {
	UserID     string
	Credits    int
	Amount     float64
	PaymentRef string
	Type       TxType
	Plan       SubscriptionType
}
