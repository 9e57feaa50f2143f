package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// HeaderAdminAPIKey es el header que autentica la API administrativa.
const HeaderAdminAPIKey = "X-Admin-API-Key"

// AdminConfig configura RequireAdmin.
type AdminConfig struct {
	// APIKey esperada. Vacía => la API administrativa queda cerrada.
	APIKey string
}

// RequireAdmin valida X-Admin-API-Key contra la key configurada.
// Sin key configurada responde 403 siempre.
func RequireAdmin(cfg AdminConfig) Middleware {
	want := []byte(strings.TrimSpace(cfg.APIKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				apperrors.WriteError(w, apperrors.ErrForbidden.WithDetail("admin api disabled"))
				return
			}
			got := strings.TrimSpace(r.Header.Get(HeaderAdminAPIKey))
			if got == "" {
				apperrors.WriteError(w, apperrors.ErrUnauthorized.WithDetail("missing "+HeaderAdminAPIKey))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				logger.From(r.Context()).Warn("admin key rejected", logger.Op("RequireAdmin"))
				apperrors.WriteError(w, apperrors.ErrForbidden.WithDetail("invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
