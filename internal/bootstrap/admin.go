// Package bootstrap prepara el estado mínimo del host al arrancar.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/trustedlogin/internal/directory"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// AdminRole es el rol del administrador del sitio.
const AdminRole = "administrator"

// AdminConfig configura EnsureAdmin.
type AdminConfig struct {
	Username string
	Email    string
}

// EnsureAdmin garantiza que exista el administrador del sitio y devuelve su ID.
// Es el requester por defecto de los grants emitidos desde la CLI. Si ya existe
// un principal con ese username debe tener rol administrador.
func EnsureAdmin(ctx context.Context, dir directory.UserDirectory, cfg AdminConfig) (string, bool, error) {
	log := logger.From(ctx).With(logger.Component("bootstrap"), logger.Op("EnsureAdmin"))

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return "", false, fmt.Errorf("bootstrap: admin username is required")
	}

	existing, err := dir.FindByUsername(ctx, username)
	if err != nil {
		return "", false, fmt.Errorf("bootstrap: lookup admin: %w", err)
	}
	if existing != nil {
		if existing.Role != AdminRole {
			return "", false, fmt.Errorf("bootstrap: user %q exists with role %q", username, existing.Role)
		}
		log.Debug("admin user detected, skipping bootstrap", logger.PrincipalID(existing.ID))
		return existing.ID, false, nil
	}

	email := strings.TrimSpace(cfg.Email)
	if email == "" {
		email = username + "@localhost"
	}
	id, err := dir.CreatePrincipal(ctx, directory.NewPrincipal{
		Username:    username,
		Email:       email,
		DisplayName: username,
		Role:        AdminRole,
	})
	if err != nil {
		return "", false, fmt.Errorf("bootstrap: create admin: %w", err)
	}
	log.Info("admin user created", logger.PrincipalID(id), logger.Email(email))
	return id, true, nil
}
