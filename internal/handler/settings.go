package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
	"vendhub-bot/pkg/apierror"
	"vendhub-bot/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SettingsHandler handles per-guild settings HTTP requests.
type SettingsHandler struct {
	store repository.SettingsStore
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store repository.SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// GetSettings handles GET /api/v1/settings/{guild_id}. Guilds without
// a stored row get the defaults.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guild_id")
	if guildID == "" {
		response.Error(w, apierror.BadRequest("guild_id is required"))
		return
	}

	settings, err := h.store.GetGuildSettings(r.Context(), guildID)
	if errors.Is(err, repository.ErrNotFound) {
		response.OK(w, model.DefaultGuildSettings(guildID))
		return
	}
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, settings)
}

// SettingsRequest represents a settings update request.
type SettingsRequest struct {
	CurrencyName string `json:"currency_name"`
	Prefix       string `json:"prefix"`
	IsActive     *bool  `json:"is_active,omitempty"`
}

// UpdateSettings handles PUT /api/v1/settings/{guild_id}
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guild_id")
	if guildID == "" {
		response.Error(w, apierror.BadRequest("guild_id is required"))
		return
	}

	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	settings := model.DefaultGuildSettings(guildID)
	if req.CurrencyName != "" {
		settings.CurrencyName = req.CurrencyName
	}
	if req.Prefix != "" {
		settings.Prefix = req.Prefix
	}
	if req.IsActive != nil {
		settings.IsActive = *req.IsActive
	}

	saved, err := h.store.UpsertGuildSettings(r.Context(), *settings)
	if err != nil {
		response.Error(w, storeError(err))
		return
	}
	response.OK(w, saved)
}
