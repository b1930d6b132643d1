// Package handlers exposes the ledger services over HTTP.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ledgerbook/backend/internal/middleware"
	"github.com/ledgerbook/backend/internal/services"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object into dst. On failure the error
// response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// identity returns the caller attached by the auth middleware.
func identity(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok || id.CompanyID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}
	return id, true
}
