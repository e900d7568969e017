package handler

import (
	"net/http"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/scheduler"
	"github.com/statsanytime/trade-bots/pkg/response"
)

// TradesHandler exposes the trade ledger and the redeposit scheduler over
// the ops API. Read only apart from the manual sweep trigger.
type TradesHandler struct {
	ledger    *ledger.Ledger
	scheduler *scheduler.RedepositScheduler
}

// NewTradesHandler creates a trades handler.
func NewTradesHandler(l *ledger.Ledger, s *scheduler.RedepositScheduler) *TradesHandler {
	return &TradesHandler{ledger: l, scheduler: s}
}

// ListWithdrawals handles GET /api/v1/trades/withdrawals
func (h *TradesHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.ledger.Withdrawals(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, withdrawals)
}

// ListDeposits handles GET /api/v1/trades/deposits
func (h *TradesHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.ledger.Deposits(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, deposits)
}

// ListScheduledDeposits handles GET /api/v1/trades/scheduled-deposits.
// Supports ?marketplace= and ?withdraw_marketplace= filters.
func (h *TradesHandler) ListScheduledDeposits(w http.ResponseWriter, r *http.Request) {
	filter := ledger.ScheduledDepositFilter{
		Marketplace:         r.URL.Query().Get("marketplace"),
		WithdrawMarketplace: r.URL.Query().Get("withdraw_marketplace"),
	}

	deposits, err := h.ledger.ScheduledDeposits(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, deposits)
}

// SweepResponse reports the outcome of a manual sweep.
type SweepResponse struct {
	Executed int `json:"executed"`
}

// TriggerSweep handles POST /api/v1/scheduler/sweep, running one sweep
// synchronously.
func (h *TradesHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	executed, err := h.scheduler.Sweep(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, SweepResponse{Executed: executed})
}
