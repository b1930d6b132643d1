package handlers

import (
	"errors"
	"net/http"

	"github.com/ledgerbook/backend/internal/services"
)

type AuthHandler struct {
	service   *services.AuthService
	validator *services.ValidationHelper
}

func NewAuthHandler(service *services.AuthService) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// MeResponse describes the authenticated caller
// @Description Current identity
type MeResponse struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	CompanyID string `json:"companyId"`
}

// Register creates a company with its first user
// @Summary Register
// @Description Create a company and its owner and return an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration request"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login exchanges credentials for an access token
// @Summary Login
// @Description Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Login request"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented token
// @Summary Logout
// @Tags Auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.service.Logout(r.Context(), id.Token, id.ExpiresAt); err != nil {
		services.SendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the identity carried by the token
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{UserID: id.UserID, Email: id.Email, CompanyID: id.CompanyID})
}

func (h *AuthHandler) sendError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrTokensDisabled) {
		services.SendErrorResponse(w, "Authentication is not configured", http.StatusServiceUnavailable, nil)
		return
	}
	services.SendServiceError(w, err)
}
