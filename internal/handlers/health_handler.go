package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/store"
)

type HealthHandler struct {
	store store.Store
	redis *redis.Client
}

// NewHealthHandler reports on st and, when set, rdb.
func NewHealthHandler(st store.Store, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{store: st, redis: rdb}
}

// HealthResponse lists the state of each dependency
// @Description Health status
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
	Store  string `json:"store" example:"up"`
	Cache  string `json:"cache" example:"disabled"`
}

// Health reports whether the service can reach its store. The cache is
// optional and never makes the service unhealthy.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Store: "up", Cache: "disabled"}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		logger.Get().WithError(err).Warn("Store health check failed")
		resp.Status = "unhealthy"
		resp.Store = "down"
		status = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		resp.Cache = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Get().WithError(err).Warn("Redis health check failed")
			resp.Cache = "down"
		}
	}

	writeJSON(w, status, resp)
}
