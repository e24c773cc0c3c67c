// Package service builds history pages from the generation and ledger ports
package service

import (
	"context"
	"time"

	"shapeshift/internal/core/taskstate"
	ptime "shapeshift/internal/platform/time"
	andom "shapeshift/internal/services/analytics/domain"
	"shapeshift/internal/services/api/history/domain"
	credom "shapeshift/internal/services/credits/domain"
	gendom "shapeshift/internal/services/generation/domain"

	"golang.org/x/sync/errgroup"
)

// Svc implements domain.ServicePort
type Svc struct {
	models   gendom.ModelsPort
	txs      credom.TransactionsPort
	activity andom.ActivityPort
	now      ptime.Clock
}

var _ domain.ServicePort = (*Svc)(nil)

// New constructs the service; activity may be nil
func New(models gendom.ModelsPort, txs credom.TransactionsPort, activity andom.ActivityPort) *Svc {
	if models == nil || txs == nil {
		panic("history.Service requires models and transactions ports")
	}
	if activity == nil {
		activity = andom.Discard{}
	}
	return &Svc{models: models, txs: txs, activity: activity, now: time.Now}
}

// Models returns a page of generations, newest first
func (s *Svc) Models(ctx context.Context, userID string, page int) (domain.ModelsPage, error) {
	page = max(page, 1)
	tasks, total, err := s.models.Models(ctx, userID, domain.PageSize, (page-1)*domain.PageSize)
	if err != nil {
		return domain.ModelsPage{}, err
	}
	out := domain.ModelsPage{Models: make([]domain.ModelItem, 0, len(tasks)), Pagination: domain.Paginate(page, total)}
	for _, t := range tasks {
		out.Models = append(out.Models, modelItem(t))
	}
	return out, nil
}

func modelItem(t gendom.Task) domain.ModelItem {
	return domain.ModelItem{
		ID:             t.ID,
		Type:           t.Kind.Slug(),
		Prompt:         t.Prompt,
		NegativePrompt: t.NegativePrompt,
		ArtStyle:       t.ArtStyle,
		ThumbnailURL:   t.ThumbnailURL,
		ModelURLs:      taskstate.DeriveFormats(t.ModelURLs.GLB),
		Status:         taskstate.Display(string(t.Status)),
		CreatedAt:      ptime.Millis(t.CreatedAt),
		TaskError:      t.TaskError,
	}
}

// Transactions returns a page of ledger rows, newest first
func (s *Svc) Transactions(ctx context.Context, userID string, page int) (domain.TransactionsPage, error) {
	page = max(page, 1)
	rows, total, err := s.txs.Transactions(ctx, userID, page, domain.PageSize)
	if err != nil {
		return domain.TransactionsPage{}, err
	}
	out := domain.TransactionsPage{Transactions: make([]domain.TxItem, 0, len(rows)), Pagination: domain.Paginate(page, total)}
	for _, tx := range rows {
		out.Transactions = append(out.Transactions, domain.TxItem{
			ID:          tx.ID,
			Type:        string(tx.Type),
			Amount:      tx.Amount,
			Credits:     tx.Credits,
			Status:      string(tx.Status),
			Timestamp:   tx.CreatedAt.UTC().Format(time.RFC3339),
			PaymentRef:  tx.PaymentRef,
			ModelType:   tx.ModelType.Slug(),
			Prompt:      tx.Prompt,
			ImageURL:    tx.ImageURL,
			ModelURL:    tx.ModelURL,
			Description: tx.Description,
		})
	}
	return out, nil
}

// Activity counts the user's generation events over the last days, alongside the lifetime model count
func (s *Svc) Activity(ctx context.Context, userID string, days int) (domain.Activity, error) {
	days = min(max(days, 1), 365)
	since := s.now().AddDate(0, 0, -days)

	var (
		events []andom.Activity
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.activity.Activity(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		_, total, err = s.models.Models(gctx, userID, 0, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Activity{}, err
	}

	out := domain.Activity{Days: days, Models: total, Events: make([]domain.ActivityItem, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, domain.ActivityItem{Event: string(e.Type), Count: e.Count})
	}
	return out, nil
}
