package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerbook/backend/internal/services"
)

type AccountHandler struct {
	service   *services.AccountService
	validator *services.ValidationHelper
}

func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// ListAccounts returns the chart of accounts ordered by code
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Account
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), id.CompanyID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// CreateAccount adds an account to the chart
// @Summary Create account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateAccountRequest true "Account"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), id.CompanyID, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetAccount returns one account
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountId} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	account, err := h.service.ResolveAccount(r.Context(), id.CompanyID, chi.URLParam(r, "accountId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// UpdateAccount changes code, name or parent of an account
// @Summary Update account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body services.UpdateAccountRequest true "Changes"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountId} [put]
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), id.CompanyID, chi.URLParam(r, "accountId"), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// DeleteAccount removes an account without children or entry lines
// @Summary Delete account
// @Tags Accounts
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountId} [delete]
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id.CompanyID, chi.URLParam(r, "accountId")); err != nil {
		services.SendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
