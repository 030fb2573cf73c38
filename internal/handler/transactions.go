package handler

import (
	"net/http"

	"vendhub-bot/internal/repository"
	"vendhub-bot/internal/service"
	"vendhub-bot/pkg/response"
)

// TransactionHandler serves the sales ledger and its projections.
type TransactionHandler struct {
	store repository.TransactionStore
	stats *service.StatsService
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(store repository.TransactionStore, stats *service.StatsService) *TransactionHandler {
	return &TransactionHandler{store: store, stats: stats}
}

// ListTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.store.ListTransactions(r.Context())
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, transactions)
}

// GetStats handles GET /api/v1/stats
func (h *TransactionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Compute(r.Context())
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, stats)
}
