// Package domain holds the history read model returned to clients
package domain

import (
	"context"

	"shapeshift/internal/core/taskstate"
)

// PageSize is the fixed number of items per history page
const PageSize = 10

// Pagination describes where a page sits in the full list
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasMore     bool `json:"hasMore"`
}

// Paginate computes the block for page of total items; empty lists have one page
func Paginate(page, total int) Pagination {
	pages := max(1, (total+PageSize-1)/PageSize)
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalItems:  total,
		HasMore:     page*PageSize < total,
	}
}

// ModelItem is one past generation
type ModelItem struct {
	ID             string              `json:"id"`
	Type           string              `json:"type"`
	Prompt         string              `json:"prompt,omitempty"`
	NegativePrompt string              `json:"negative_prompt,omitempty"`
	ArtStyle       string              `json:"art_style,omitempty"`
	ThumbnailURL   string              `json:"thumbnail_url"`
	ModelURLs      taskstate.ModelURLs `json:"model_urls"`
	Status         taskstate.Status    `json:"status"`
	CreatedAt      int64               `json:"created_at"`
	TaskError      string              `json:"task_error,omitempty"`
}

// ModelsPage is a page of generations
type ModelsPage struct {
	Models     []ModelItem `json:"models"`
	Pagination Pagination  `json:"pagination"`
}

// TxItem is one ledger row as clients see it
type TxItem struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Credits     int     `json:"credits"`
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	PaymentRef  string  `json:"payment_ref,omitempty"`
	ModelType   string  `json:"modelType,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	ModelURL    string  `json:"modelUrl,omitempty"`
	Description string  `json:"description,omitempty"`
}

// TransactionsPage is a page of ledger rows
type TransactionsPage struct {
	Transactions []TxItem   `json:"transactions"`
	Pagination   Pagination `json:"pagination"`
}

// ActivityItem counts one kind of generation event
type ActivityItem struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}

// Activity summarises a user's recent generation events
type Activity struct {
	Days   int            `json:"days"`
	Events []ActivityItem `json:"events"`
	Models int            `json:"models"`
}

// ServicePort is consumed by the history handlers
type ServicePort interface {
	Models(ctx context.Context, userID string, page int) (ModelsPage, error)
	Transactions(ctx context.Context, userID string, page int) (TransactionsPage, error)
	Activity(ctx context.Context, userID string, days int) (Activity, error)
}
