// Package router arma el chi.Router del servicio.
package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/trustedlogin/internal/http/controllers"
	mw "github.com/dropDatabas3/trustedlogin/internal/http/middlewares"
	"github.com/dropDatabas3/trustedlogin/internal/rate"
)

// Deps son las dependencias del router. Metrics y LoginLimiter son opcionales.
type Deps struct {
	Namespace    string
	AdminAPIKey  string
	LoginLimiter rate.Limiter

	Access  *controllers.AccessController
	Login   *controllers.LoginController
	Health  *controllers.HealthController
	Metrics http.Handler
}

// New registra todas las rutas:
//
//	GET    /healthz
//	GET    /metrics
//	POST   /admin/access
//	GET    /admin/access
//	DELETE /admin/access/{identifier}
//	GET    /admin/access-key
//	POST   /{endpoint}
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(d.Namespace, redactPath),
	)

	r.Get("/healthz", d.Health.Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireAdmin(mw.AdminConfig{APIKey: d.AdminAPIKey}))
		r.Post("/access", d.Access.Grant)
		r.Get("/access", d.Access.List)
		r.Delete("/access/{identifier}", d.Access.Revoke)
		r.Get("/access-key", d.Access.AccessKey)
	})

	r.With(mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: d.LoginLimiter,
		KeyFunc: mw.IPOnlyRateKey,
		Reject:  d.Login.Reject,
	})).Post("/{endpoint}", d.Login.Login)
	return r
}

// redactPath oculta los segmentos secretos: el endpoint del login público y
// el identificador de DELETE /admin/access/{identifier}.
func redactPath(path string) string {
	switch {
	case path == "/healthz", path == "/metrics", path == "/admin/access", path == "/admin/access-key":
		return path
	case strings.HasPrefix(path, "/admin/access/"):
		return "/admin/access/{identifier}"
	case strings.HasPrefix(path, "/admin"):
		return path
	case strings.Count(strings.Trim(path, "/"), "/") == 0:
		return "/{endpoint}"
	}
	return path
}
