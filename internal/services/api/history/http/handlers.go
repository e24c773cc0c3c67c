// Package http provides the history endpoints
package http

import (
	stdhttp "net/http"
	"strconv"

	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/platform/net/http/bind"
	"shapeshift/internal/services/api/history/domain"
)

// Register mounts history endpoints on the given router
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/models", h.models)
	httpkit.Get(r, "/transactions", h.transactions)
	httpkit.Get(r, "/activity", h.activity)
}

type handlers struct{ svc domain.ServicePort }

// @Summary Past generations
// @Tags History
// @Produce json
// @Security bearerAuth
// @Param page query int false "1-based page"
// @Success 200 {object} domain.ModelsPage
// @Router /history/models [get]
func (h *handlers) models(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Models(r.Context(), uid, bind.QueryPage(r, "page"))
}

// @Summary Credit transactions
// @Tags History
// @Produce json
// @Security bearerAuth
// @Param page query int false "1-based page"
// @Success 200 {object} domain.TransactionsPage
// @Router /history/transactions [get]
func (h *handlers) transactions(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Transactions(r.Context(), uid, bind.QueryPage(r, "page"))
}

// @Summary Recent generation activity
// @Tags History
// @Produce json
// @Security bearerAuth
// @Param days query int false "window in days, default 30"
// @Success 200 {object} domain.Activity
// @Router /history/activity [get]
func (h *handlers) activity(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 1 {
		days = 30
	}
	return h.svc.Activity(r.Context(), uid, days)
}
