// Package directory modela el servicio de usuarios y roles del host.
//
// El core de acceso sólo habla con estas interfaces: crear/borrar el principal
// de soporte, leer/escribir sus atributos y clonar el rol de soporte.
package directory

import (
	"context"
	"errors"
)

var (
	ErrPrincipalNotFound = errors.New("directory: principal not found")
	ErrRoleNotFound      = errors.New("directory: role not found")
	ErrRoleExists        = errors.New("directory: role already exists")
	ErrUsernameTaken     = errors.New("directory: username taken")
	ErrEmailTaken        = errors.New("directory: email taken")
)

// Principal es un usuario del host.
type Principal struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	Role        string
	Attributes  map[string]string
}

// NewPrincipal son los atributos de creación.
type NewPrincipal struct {
	Username    string
	Email       string
	DisplayName string
	Role        string
	// Password vacío: el principal nunca hace login con credenciales.
	Password string
}

// Role es un conjunto nombrado de capabilities.
type Role struct {
	Name         string
	DisplayName  string
	Capabilities map[string]bool
}

// Has reporta si el rol tiene la capability.
func (r *Role) Has(capability string) bool {
	return r != nil && r.Capabilities[capability]
}

// UserDirectory es el colaborador de usuarios.
type UserDirectory interface {
	CreatePrincipal(ctx context.Context, p NewPrincipal) (string, error)
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	FindByRole(ctx context.Context, role string) ([]Principal, error)
	// FindByAttribute retorna (nil, nil) si ningún principal tiene key=value.
	FindByAttribute(ctx context.Context, key, value string) (*Principal, error)
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	// DeletePrincipal reasigna el contenido a reassignTo (si no es vacío) y
	// borra. Retorna false si el principal no existía.
	DeletePrincipal(ctx context.Context, id, reassignTo string) (bool, error)
	SetAttribute(ctx context.Context, id, key, value string) error
	// GetAttribute retorna "" si el atributo no existe.
	GetAttribute(ctx context.Context, id, key string) (string, error)
	HasCapability(ctx context.Context, id, capability string) (bool, error)
}

// RoleDirectory es el colaborador de roles.
type RoleDirectory interface {
	// CloneRole crea newName con las capabilities de baseName, agrega extraCaps y
	// por último quita removedCaps.
	CloneRole(ctx context.Context, newName, displayName, baseName string, extraCaps, removedCaps []string) (*Role, error)
	// GetRole retorna (nil, nil) si no existe.
	GetRole(ctx context.Context, name string) (*Role, error)
	DeleteRole(ctx context.Context, name string) error
}

// Directory agrupa ambos colaboradores.
type Directory interface {
	UserDirectory
	RoleDirectory
}
