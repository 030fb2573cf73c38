package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"vendhub-bot/internal/repository"
	"vendhub-bot/pkg/apierror"
	"vendhub-bot/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AccountHandler handles account management HTTP requests.
type AccountHandler struct {
	store repository.Store
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(store repository.Store) *AccountHandler {
	return &AccountHandler{store: store}
}

func accountID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "account_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apierror.BadRequest("account_id must be a positive integer")
	}
	return id, nil
}

// ListAccounts handles GET /api/v1/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, accounts)
}

// GetAccount handles GET /api/v1/accounts/{account_id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	account, err := h.store.GetAccount(r.Context(), id)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, account)
}

// BalanceRequest represents a balance mutation request.
type BalanceRequest struct {
	Balance *int64 `json:"balance,omitempty"`
	Delta   *int64 `json:"delta,omitempty"`
}

// SetBalance handles PUT /api/v1/accounts/{account_id}/balance.
// Either an absolute balance or a signed delta must be given.
func (h *AccountHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	switch {
	case req.Balance != nil:
		if *req.Balance < 0 {
			response.Error(w, apierror.ValidationError("invalid balance",
				apierror.FieldError{Field: "balance", Message: "balance cannot be negative"}))
			return
		}
		account, err := h.store.SetBalance(r.Context(), id, *req.Balance)
		if err != nil {
			response.Error(w, storeError(err))
			return
		}
		response.OK(w, account)
	case req.Delta != nil:
		account, err := h.store.AdjustBalance(r.Context(), id, *req.Delta)
		if err != nil {
			response.Error(w, storeError(err))
			return
		}
		response.OK(w, account)
	default:
		response.Error(w, apierror.BadRequest("balance or delta is required"))
	}
}

// ResetAllBalances handles POST /api/v1/accounts/reset
func (h *AccountHandler) ResetAllBalances(w http.ResponseWriter, r *http.Request) {
	affected, err := h.store.ResetAllBalances(r.Context())
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, map[string]interface{}{
		"status":   "reset",
		"accounts": affected,
	})
}

// AccountTransactions handles GET /api/v1/accounts/{account_id}/transactions
func (h *AccountHandler) AccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	transactions, err := h.store.TransactionsByAccount(r.Context(), id)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, transactions)
}
