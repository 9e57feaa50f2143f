// Package cache provee el almacenamiento efímero compartido (transients) que usan
// el lockdown y el set de access keys usadas.
//
// Soporta:
//   - Memory (in-process, go-cache; desarrollo/testing o un solo nodo)
//   - Redis (distribuido, para producción con varias réplicas)
//
// Las keys se namespacean con el Prefix de la configuración.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Incr incrementa un contador y retorna el valor nuevo. El ttl se aplica
	// sólo cuando el contador se crea.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TrackWindow registra member con instante at en el set key, descarta los
	// miembros con instante <= at-window y, si quedan más de limit (limit > 0),
	// los más viejos. Devuelve cuántos miembros distintos quedan. La operación
	// es atómica también entre réplicas.
	TrackWindow(ctx context.Context, key, member string, at time.Time, window time.Duration, limit int) (int64, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// ErrNotFound indica que la key no existe.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente de cache según la configuración.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
