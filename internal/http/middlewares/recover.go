package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// WithRecover captura panics y devuelve un 500 en lugar de crashear.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http usa ErrAbortHandler para cortar la respuesta a propósito.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).Error("panic recovered",
					logger.Op("recover"),
					logger.Any("panic", rec),
					zap.Stack("stack"),
				)
				apperrors.WriteError(w, apperrors.ErrInternal.WithDetail("panic recovered"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
