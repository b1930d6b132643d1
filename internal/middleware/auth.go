package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/services"
)

type contextKey int

const identityKey contextKey = iota

// Identity is the authenticated caller. CompanyID is the only source of a
// request's tenant.
type Identity struct {
	UserID    string
	Email     string
	CompanyID string
	Token     string
	ExpiresAt time.Time
}

// IdentityFrom returns the identity InitAuthMiddleware attached to ctx.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// InitAuthMiddleware verifies the bearer token of every request. Without a
// signing key every request is rejected.
func InitAuthMiddleware(cfg config.JWTConfig, c *cache.Cache) func(http.Handler) http.Handler {
	log := logger.Component("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() {
				services.SendErrorResponse(w, "Authentication is not configured", http.StatusUnauthorized, nil)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
				return
			}

			claims, err := services.ParseToken(cfg, token)
			if err != nil {
				log.WithError(err).Debug("Rejected token")
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
				return
			}

			revoked, err := c.IsBlacklisted(r.Context(), token)
			if err != nil {
				log.WithError(err).Error("Token blacklist lookup failed")
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
				return
			}
			if revoked {
				services.SendErrorResponse(w, "Token has been revoked", http.StatusUnauthorized, nil)
				return
			}

			id := &Identity{
				UserID:    claims.Subject,
				Email:     claims.Email,
				CompanyID: claims.CompanyID,
				Token:     token,
			}
			if claims.ExpiresAt != nil {
				id.ExpiresAt = claims.ExpiresAt.Time
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
