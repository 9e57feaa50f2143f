package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del core de acceso. Viven en un paquete propio para evitar ciclos
// entre los servicios y la capa HTTP.

var (
	Grants = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustedlogin_grants_total",
		Help: "Grants de acceso de soporte por resultado",
	}, []string{"result"})

	Revocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustedlogin_revocations_total",
		Help: "Revocaciones por trigger (manual, expired, scheduled, all)",
	}, []string{"trigger"})

	Logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustedlogin_logins_total",
		Help: "Intentos de login de soporte por resultado",
	}, []string{"result"})

	Lockdowns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trustedlogin_lockdowns_total",
		Help: "Transiciones a lockdown por brute force",
	})

	RemoteRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustedlogin_remote_request_duration_seconds",
		Help:    "Latencia de requests a la autoridad remota",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"method", "code"})
)

// Register registra las métricas en reg (o en el default si es nil). Tolera
// registros repetidos.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{Grants, Revocations, Logins, Lockdowns, RemoteRequestDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
