package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// Pinger es un componente chequeable por /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController maneja GET /healthz.
type HealthController struct {
	version    string
	components map[string]Pinger
}

// NewHealthController crea el controller. components puede ser nil.
func NewHealthController(version string, components map[string]Pinger) *HealthController {
	return &HealthController{version: version, components: components}
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Healthz responde "ready" o "unavailable" (503) si algún componente falla.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ready", Version: c.version}
	if len(c.components) > 0 {
		resp.Components = make(map[string]string, len(c.components))
	}

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.components[name].Ping(ctx); err != nil {
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			logger.From(ctx).Warn("health component down",
				logger.Op("HealthController.Healthz"), logger.Component(name), logger.Err(err))
			continue
		}
		resp.Components[name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
