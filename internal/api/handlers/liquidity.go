package handlers

import (
	"context"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/transactions"
	"github.com/shopspring/decimal"
)

// LiquidityService is the balance API used by LiquidityHandler.
type LiquidityService interface {
	GetBalances(ctx context.Context, userID int64) ([]*domain.LiquidityBalance, error)
	UpdateBalance(ctx context.Context, userID int64, medio string, balance decimal.Decimal) (*domain.LiquidityBalance, error)
	GetTotalLiquidity(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetHistory(ctx context.Context, userID int64) ([]*domain.LiquidityHistory, error)
	GetHistoryByDate(ctx context.Context, userID int64, date civil.Date) ([]*domain.LiquidityHistory, error)
}

// LiquidityHandler handles liquidity endpoints.
type LiquidityHandler struct {
	svc LiquidityService
}

// NewLiquidityHandler creates a new liquidity handler.
func NewLiquidityHandler(svc LiquidityService) *LiquidityHandler {
	return &LiquidityHandler{svc: svc}
}

// Balances handles GET /liquidity/balances
func (h *LiquidityHandler) Balances(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	balances, err := h.svc.GetBalances(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get balances")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, balances)
}

// Total handles GET /liquidity/total
func (h *LiquidityHandler) Total(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	total, err := h.svc.GetTotalLiquidity(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get total liquidity")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]decimal.Decimal{"total": total})
}

type updateBalanceRequest struct {
	Medio   string               `json:"medio"`
	Balance *transactions.Amount `json:"balance"`
}

// Update handles POST /liquidity/update
func (h *LiquidityHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateBalanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Balance == nil {
		middleware.WriteError(w, http.StatusBadRequest, "balance es requerido")
		return
	}
	balance, err := decimal.NewFromString(string(*req.Balance))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "balance debe ser un número")
		return
	}

	saved, err := h.svc.UpdateBalance(r.Context(), userID, req.Medio, balance)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update balance")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, saved)
}

// History handles GET /liquidity/history[?date=YYYY-MM-DD]
func (h *LiquidityHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}

	var (
		history []*domain.LiquidityHistory
		err     error
	)
	if date.IsValid() {
		history, err = h.svc.GetHistoryByDate(r.Context(), userID, date)
	} else {
		history, err = h.svc.GetHistory(r.Context(), userID)
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to get liquidity history")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, history)
}
