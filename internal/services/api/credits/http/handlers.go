// Package http provides the credit balance and top-up endpoints
package http

import (
	stdhttp "net/http"

	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/services/credits/domain"
)

// GrantScope is the token scope allowed to record purchases
const GrantScope = "credits:grant"

// Register mounts the credit endpoints
func Register(r httpkit.Router, ledger domain.LedgerPort) {
	h := &handlers{ledger: ledger}

	httpkit.Get(r, "/", h.balance)
	r.With(httpkit.RequireScope(GrantScope)).Post("/topups", httpkit.JSON(h.topUp))
}

type handlers struct{ ledger domain.LedgerPort }

// TopUpInput records a purchase confirmed by the payment processor
type TopUpInput struct {
	UserID     string  `json:"user_id"     validate:"required,notblank,max=128"`
	Credits    int     `json:"credits"     validate:"required,min=1,max=100000"`
	Amount     float64 `json:"amount"      validate:"gte=0"`
	PaymentRef string  `json:"payment_ref" validate:"required,notblank,max=200"`
	Type       string  `json:"type"        validate:"omitempty,oneof=topup subscription"`
	Plan       string  `json:"plan"        validate:"omitempty,oneof=ninja pro promax"`
}

// @Summary Current balance and subscription
// @Tags Credits
// @Produce json
// @Security bearerAuth
// @Success 200 {object} domain.Account
// @Router /credits [get]
func (h *handlers) balance(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.ledger.Balance(r.Context(), uid)
}

// @Summary Record a confirmed purchase
// @Tags Credits
// @Accept json
// @Produce json
// @Security bearerAuth
// @Param payload body TopUpInput true "Purchase"
// @Success 201 {object} domain.Account
// @Failure 409 {object} httpkit.Envelope "payment already recorded"
// @Router /credits/topups [post]
func (h *handlers) topUp(r *stdhttp.Request, in TopUpInput) (any, error) {
	a, err := h.ledger.TopUp(r.Context(), domain.TopUpRequest{
		UserID:     in.UserID,
		Credits:    in.Credits,
		Amount:     in.Amount,
		PaymentRef: in.PaymentRef,
		Type:       domain.TxType(in.Type),
		Plan:       domain.SubscriptionType(in.Plan),
	})
	if err != nil {
		return nil, err
	}
	logger.C(r.Context()).Info().Str("for_user", in.UserID).Int("credits", in.Credits).
		Str("payment_ref", in.PaymentRef).Msg("purchase recorded")
	return httpkit.Created(a), nil
}
