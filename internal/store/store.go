// Package store define el almacenamiento persistido de opciones (key-value) del
// core de acceso: endpoint activo, public key del vendor y access key compartida.
//
// Todas las keys se namespacean con el slug del vendor ({ns}_endpoint, …) a
// través de Namespaced; ningún componente escribe keys crudas.
package store

import (
	"context"
	"errors"
)

// ErrNotFound indica que la opción no existe.
var ErrNotFound = errors.New("store: option not found")

// OptionStore es un key-value persistido.
type OptionStore interface {
	// Get retorna ErrNotFound si la opción no existe.
	Get(ctx context.Context, name string) (string, error)
	// Set crea o reemplaza la opción (último escritor gana).
	Set(ctx context.Context, name, value string) error
	// Delete es idempotente.
	Delete(ctx context.Context, name string) error
}

// Nombres de opciones (sin prefijo).
const (
	OptEndpoint        = "endpoint"
	OptPublicKey       = "public_key"
	OptSharedAccessKey = "shared_accesskey"
)

// Namespaced prefija cada opción con "{ns}_".
type Namespaced struct {
	ns    string
	inner OptionStore
}

// WithNamespace envuelve inner con el prefijo del namespace.
func WithNamespace(ns string, inner OptionStore) *Namespaced {
	return &Namespaced{ns: ns, inner: inner}
}

// Key devuelve el nombre completo persistido para una opción.
func (n *Namespaced) Key(name string) string { return n.ns + "_" + name }

// Namespace devuelve el slug usado como prefijo.
func (n *Namespaced) Namespace() string { return n.ns }

func (n *Namespaced) Get(ctx context.Context, name string) (string, error) {
	return n.inner.Get(ctx, n.Key(name))
}

func (n *Namespaced) Set(ctx context.Context, name, value string) error {
	return n.inner.Set(ctx, n.Key(name), value)
}

func (n *Namespaced) Delete(ctx context.Context, name string) error {
	return n.inner.Delete(ctx, n.Key(name))
}

// IsNotFound reporta si err es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
