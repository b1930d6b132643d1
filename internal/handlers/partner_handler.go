package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/services"
)

type PartnerHandler struct {
	service   *services.PartnerService
	validator *services.ValidationHelper
}

func NewPartnerHandler(service *services.PartnerService) *PartnerHandler {
	return &PartnerHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// ListPartners returns the partners ordered by name
// @Summary List partners
// @Tags Partners
// @Produce json
// @Security BearerAuth
// @Param type query string false "Customer or Vendor"
// @Success 200 {array} models.Partner
// @Failure 400 {object} services.ErrorResponse
// @Router /partners [get]
func (h *PartnerHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var filter *models.PartnerType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := models.ParsePartnerType(raw)
		if !ok {
			services.SendErrorResponse(w, "Invalid partner type", http.StatusBadRequest, nil)
			return
		}
		filter = &t
	}

	partners, err := h.service.ListPartners(r.Context(), id.CompanyID, filter)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

// CreatePartner registers a customer or vendor
// @Summary Create partner
// @Tags Partners
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreatePartnerRequest true "Partner"
// @Success 201 {object} models.Partner
// @Failure 400 {object} services.ErrorResponse
// @Router /partners [post]
func (h *PartnerHandler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreatePartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	partner, err := h.service.CreatePartner(r.Context(), id.CompanyID, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

// GetPartner returns one partner
// @Summary Get partner
// @Tags Partners
// @Produce json
// @Security BearerAuth
// @Param partnerId path string true "Partner ID"
// @Success 200 {object} models.Partner
// @Failure 404 {object} services.ErrorResponse
// @Router /partners/{partnerId} [get]
func (h *PartnerHandler) GetPartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	partner, err := h.service.ResolvePartner(r.Context(), id.CompanyID, chi.URLParam(r, "partnerId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

// UpdatePartner changes type or name of a partner
// @Summary Update partner
// @Tags Partners
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param partnerId path string true "Partner ID"
// @Param request body services.UpdatePartnerRequest true "Changes"
// @Success 200 {object} models.Partner
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /partners/{partnerId} [put]
func (h *PartnerHandler) UpdatePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.UpdatePartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	partner, err := h.service.UpdatePartner(r.Context(), id.CompanyID, chi.URLParam(r, "partnerId"), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

// DeletePartner removes a partner; entry lines referencing it keep their
// amounts and lose the reference
// @Summary Delete partner
// @Tags Partners
// @Security BearerAuth
// @Param partnerId path string true "Partner ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /partners/{partnerId} [delete]
func (h *PartnerHandler) DeletePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePartner(r.Context(), id.CompanyID, chi.URLParam(r, "partnerId")); err != nil {
		services.SendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
