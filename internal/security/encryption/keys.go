package encryption

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/trustedlogin/internal/config"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/store"
)

// Fetcher es la parte del cliente remoto que usa el servicio de claves.
type Fetcher interface {
	Do(ctx context.Context, method, path string, body any, requiredKeys ...string) (map[string]any, error)
}

// Keys resuelve la public key del vendor: primero la cacheada en el option
// store, si no la que publica el sitio del vendor.
type Keys struct {
	cfg     *config.Config
	remote  Fetcher
	options *store.Namespaced
	sf      singleflight.Group
}

// NewKeys crea el resolvedor de claves.
func NewKeys(cfg *config.Config, remote Fetcher, options *store.Namespaced) *Keys {
	return &Keys{cfg: cfg, remote: remote, options: options}
}

// PublicKeyURL es la URL donde el vendor publica su public key.
func (k *Keys) PublicKeyURL() string {
	v := k.cfg.Vendor()
	return strings.TrimRight(v.Website, "/") + "/" + strings.TrimLeft(v.PublicKeyPath, "/")
}

// GetEncryptionKey devuelve la public key del vendor. Fetches concurrentes se
// deduplican; errores de fetch o de storage se propagan.
func (k *Keys) GetEncryptionKey(ctx context.Context) (string, error) {
	cached, err := k.options.Get(ctx, store.OptPublicKey)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !store.IsNotFound(err) {
		return "", fmt.Errorf("encryption: read cached key: %w", err)
	}

	v, err, _ := k.sf.Do("public_key", func() (any, error) {
		log := logger.From(ctx).With(logger.Layer("service"), logger.Component("encryption"), logger.Op("GetEncryptionKey"))

		out, err := k.remote.Do(ctx, "GET", k.PublicKeyURL(), nil, "publicKey")
		if err != nil {
			log.Warn("vendor public key fetch failed", logger.Err(err))
			return "", err
		}
		key, _ := out["publicKey"].(string)
		if strings.TrimSpace(key) == "" {
			return "", ErrInvalidKey
		}
		if err := k.options.Set(ctx, store.OptPublicKey, key); err != nil {
			return "", fmt.Errorf("encryption: cache key: %w", err)
		}
		log.Info("vendor public key cached")
		return key, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Forget borra la clave cacheada (rotación de clave del vendor).
func (k *Keys) Forget(ctx context.Context) error {
	return k.options.Delete(ctx, store.OptPublicKey)
}
