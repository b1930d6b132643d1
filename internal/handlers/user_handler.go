package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerbook/backend/internal/services"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// DeleteUser removes a user of the caller's company
// @Summary Remove user
// @Description Transactions the user created stay posted without a creator
// @Tags Users
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{userId} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveUser(r.Context(), id.CompanyID, chi.URLParam(r, "userId")); err != nil {
		services.SendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
