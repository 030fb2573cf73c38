package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
	"vendhub-bot/pkg/apierror"
	"vendhub-bot/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ItemHandler handles catalog management HTTP requests.
type ItemHandler struct {
	store repository.ItemStore
}

// NewItemHandler creates a new item handler.
func NewItemHandler(store repository.ItemStore) *ItemHandler {
	return &ItemHandler{store: store}
}

func itemID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "item_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apierror.BadRequest("item_id must be a positive integer")
	}
	return id, nil
}

// ListItems handles GET /api/v1/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListItems(r.Context())
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, items)
}

// GetItem handles GET /api/v1/items/{item_id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, item)
}

// CreateItem handles POST /api/v1/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in model.InsertItem
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if in.Name == "" {
		response.Error(w, apierror.ValidationError("invalid item",
			apierror.FieldError{Field: "name", Message: "name is required"}))
		return
	}
	if in.Price < 0 {
		response.Error(w, apierror.ValidationError("invalid item",
			apierror.FieldError{Field: "price", Message: "price cannot be negative"}))
		return
	}
	if in.Stock < 0 {
		response.Error(w, apierror.ValidationError("invalid item",
			apierror.FieldError{Field: "stock", Message: "stock cannot be negative"}))
		return
	}

	item, err := h.store.CreateItem(r.Context(), in)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.Created(w, item)
}

// UpdateItem handles PATCH /api/v1/items/{item_id}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var upd model.ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if upd.Price != nil && *upd.Price < 0 {
		response.Error(w, apierror.ValidationError("invalid item",
			apierror.FieldError{Field: "price", Message: "price cannot be negative"}))
		return
	}
	if upd.Stock != nil && *upd.Stock < 0 {
		response.Error(w, apierror.ValidationError("invalid item",
			apierror.FieldError{Field: "stock", Message: "stock cannot be negative"}))
		return
	}

	item, err := h.store.UpdateItem(r.Context(), id, upd)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, item)
}

// DeleteItem handles DELETE /api/v1/items/{item_id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.store.DeleteItem(r.Context(), id); err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.NoContent(w)
}

// RestockRequest represents a stock adjustment request.
type RestockRequest struct {
	Delta int64 `json:"delta"`
}

// Restock handles POST /api/v1/items/{item_id}/restock
func (h *ItemHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Delta == 0 {
		response.Error(w, apierror.BadRequest("delta must be non-zero"))
		return
	}

	if err := h.store.AdjustStock(r.Context(), id, req.Delta); err != nil {
		response.Error(w, storeError(err))
		return
	}

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, item)
}
