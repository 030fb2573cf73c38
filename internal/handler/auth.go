package handler

import (
	"encoding/json"
	"net/http"

	"vendhub-bot/internal/service"
	"vendhub-bot/pkg/apierror"
	"vendhub-bot/pkg/response"
)

// AuthHandler handles admin session HTTP requests.
type AuthHandler struct {
	tokenService *service.TokenService
	loginKey     string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokenService *service.TokenService, loginKey string) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		loginKey:     loginKey,
	}
}

// LoginRequest represents the request body for session creation.
type LoginRequest struct {
	Key string `json:"key"`
}

// LoginResponse represents the response for session creation.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Login-Key")
	if key == "" {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			key = req.Key
		}
	}
	defer r.Body.Close()

	if h.loginKey == "" {
		response.Error(w, apierror.ServiceUnavailable("admin login is not configured"))
		return
	}
	if key == "" || key != h.loginKey {
		response.Error(w, apierror.Unauthorized("invalid login key"))
		return
	}

	token, err := h.tokenService.GenerateToken(r.Context(), "dashboard")
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, LoginResponse{
		Token:     token,
		ExpiresIn: 3600,
	})
}

// RevokeToken handles POST /api/v1/auth/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RefreshToken(r.Context(), token); err != nil {
		response.Error(w, apierror.Unauthorized(err.Error()))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_in": 3600,
	})
}
