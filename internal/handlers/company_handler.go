package handlers

import (
	"net/http"

	"github.com/ledgerbook/backend/internal/services"
)

type CompanyHandler struct {
	service   *services.TenantService
	validator *services.ValidationHelper
}

func NewCompanyHandler(service *services.TenantService) *CompanyHandler {
	return &CompanyHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// RenameCompanyRequest represents the company update payload
// @Description Company update request
type RenameCompanyRequest struct {
	Name string `json:"name" validate:"required,max=200" example:"Acme Holdings"`
}

// GetCompany returns the caller's company
// @Summary Get company
// @Tags Company
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Company
// @Failure 401 {object} services.ErrorResponse
// @Router /company [get]
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	company, err := h.service.GetCompany(r.Context(), id.CompanyID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

// RenameCompany changes the caller's company name
// @Summary Rename company
// @Tags Company
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RenameCompanyRequest true "New name"
// @Success 200 {object} models.Company
// @Failure 400 {object} services.ErrorResponse
// @Router /company [put]
func (h *CompanyHandler) RenameCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req RenameCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	company, err := h.service.RenameCompany(r.Context(), id.CompanyID, req.Name)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}
