package access

import (
	"context"
	"crypto/subtle"

	"github.com/dropDatabas3/trustedlogin/internal/store"
)

// Endpoint es el slug público de login del namespace. Hay a lo sumo uno activo;
// si no existe, no hay login posible.
type Endpoint struct {
	options *store.Namespaced
}

// NewEndpoint crea el accessor sobre el option store del namespace.
func NewEndpoint(options *store.Namespaced) *Endpoint {
	return &Endpoint{options: options}
}

// Get devuelve el slug activo o "" si no hay.
func (e *Endpoint) Get(ctx context.Context) (string, error) {
	v, err := e.options.Get(ctx, store.OptEndpoint)
	if store.IsNotFound(err) {
		return "", nil
	}
	return v, err
}

// Set publica el slug; reemplaza cualquier anterior.
func (e *Endpoint) Set(ctx context.Context, slug string) error {
	return e.options.Set(ctx, store.OptEndpoint, slug)
}

// Delete desactiva el endpoint.
func (e *Endpoint) Delete(ctx context.Context) error {
	return e.options.Delete(ctx, store.OptEndpoint)
}

// Matches compara candidate con el slug activo en tiempo constante.
func (e *Endpoint) Matches(ctx context.Context, candidate string) (bool, error) {
	cur, err := e.Get(ctx)
	if err != nil || cur == "" || candidate == "" {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(cur), []byte(candidate)) == 1, nil
}
