// Package handler exposes the funds endpoints: account deposits and
// balances, and the engine treasury's deposit and privileged withdrawal.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"gavel/internal/platform/middleware"
	"gavel/internal/transport/http/shared"
	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Service defines the funds operations the handler invokes. Withdrawal
// authority is checked by the service, not here.
type Service interface {
	Deposit(ctx context.Context, addr domain.Address, amount decimal.Decimal) error
	DepositTreasury(ctx context.Context, amount decimal.Decimal) error
	Withdraw(ctx context.Context, actor domain.Address, amount decimal.Decimal) error
	Balances(ctx context.Context, addr domain.Address) (native, stable decimal.Decimal, err error)
}

// Handler handles account and treasury funds endpoints.
type Handler struct {
	funds     Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(funds Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{funds: funds, logger: logger, validator: validator}
}

// Register registers the funds routes with the chi router. Every route
// acts on the authenticated caller.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/accounts/deposit", h.handleDeposit)
		r.Get("/accounts/balance", h.handleBalance)
		r.Post("/treasury/deposit", h.handleTreasuryDeposit)
		r.Post("/treasury/withdraw", h.handleWithdraw)
	})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func decodeAmount(r *http.Request) (decimal.Decimal, error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	return req.Amount, nil
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	amount, err := decodeAmount(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.funds.Deposit(ctx, middleware.GetCaller(ctx), amount); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceResponse struct {
	Address domain.Address  `json:"address"`
	Native  decimal.Decimal `json:"native"`
	Stable  decimal.Decimal `json:"stable"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	native, stable, err := h.funds.Balances(ctx, caller)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, balanceResponse{
		Address: caller,
		Native:  native,
		Stable:  stable,
	})
}

func (h *Handler) handleTreasuryDeposit(w http.ResponseWriter, r *http.Request) {
	amount, err := decodeAmount(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.funds.DepositTreasury(r.Context(), amount); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	amount, err := decodeAmount(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.funds.Withdraw(ctx, middleware.GetCaller(ctx), amount); err != nil {
		h.logger.WarnContext(ctx, "treasury withdrawal rejected",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
