package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Roles base con los que arranca el directorio en memoria.
var defaultRoles = map[string][]string{
	"administrator": {
		"read", "edit_posts", "edit_others_posts", "publish_posts", "delete_posts",
		"upload_files", "manage_options", "list_users", "create_users", "delete_users",
		"edit_users", "promote_users", "remove_users", "delete_site",
	},
	"editor": {
		"read", "edit_posts", "edit_others_posts", "publish_posts", "delete_posts",
		"upload_files", "moderate_comments", "manage_categories",
	},
	"subscriber": {"read"},
}

// Memory es un Directory in-process. Lleva además la propiedad de "contenido"
// para poder observar la reasignación al borrar.
type Memory struct {
	mu         sync.RWMutex
	principals map[string]*Principal
	roles      map[string]*Role
	content    map[string][]string // ownerID -> contentIDs
}

var _ Directory = (*Memory)(nil)

// NewMemory crea un directorio con los roles base.
func NewMemory() *Memory {
	m := &Memory{
		principals: map[string]*Principal{},
		roles:      map[string]*Role{},
		content:    map[string][]string{},
	}
	for name, caps := range defaultRoles {
		r := &Role{Name: name, DisplayName: strings.ToUpper(name[:1]) + name[1:], Capabilities: map[string]bool{}}
		for _, c := range caps {
			r.Capabilities[c] = true
		}
		m.roles[name] = r
	}
	return m
}

func clonePrincipal(p *Principal) *Principal {
	out := *p
	out.Attributes = make(map[string]string, len(p.Attributes))
	for k, v := range p.Attributes {
		out.Attributes[k] = v
	}
	return &out
}

func cloneRole(r *Role) *Role {
	out := *r
	out.Capabilities = make(map[string]bool, len(r.Capabilities))
	for k, v := range r.Capabilities {
		out.Capabilities[k] = v
	}
	return &out
}

func (m *Memory) CreatePrincipal(_ context.Context, np NewPrincipal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals {
		if strings.EqualFold(p.Username, np.Username) {
			return "", ErrUsernameTaken
		}
		if np.Email != "" && strings.EqualFold(p.Email, np.Email) {
			return "", ErrEmailTaken
		}
	}
	if _, ok := m.roles[np.Role]; !ok {
		return "", ErrRoleNotFound
	}
	id := uuid.NewString()
	m.principals[id] = &Principal{
		ID:          id,
		Username:    np.Username,
		Email:       np.Email,
		DisplayName: np.DisplayName,
		Role:        np.Role,
		Attributes:  map[string]string{},
	}
	return id, nil
}

func (m *Memory) GetPrincipal(_ context.Context, id string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return clonePrincipal(p), nil
}

func (m *Memory) FindByRole(_ context.Context, role string) ([]Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Principal
	for _, p := range m.principals {
		if p.Role == role {
			out = append(out, *clonePrincipal(p))
		}
	}
	return out, nil
}

func (m *Memory) FindByAttribute(_ context.Context, key, value string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.principals {
		if v, ok := p.Attributes[key]; ok && v == value {
			return clonePrincipal(p), nil
		}
	}
	return nil, nil
}

func (m *Memory) find(match func(*Principal) bool) *Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.principals {
		if match(p) {
			return clonePrincipal(p)
		}
	}
	return nil
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*Principal, error) {
	return m.find(func(p *Principal) bool { return strings.EqualFold(p.Username, username) }), nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*Principal, error) {
	if email == "" {
		return nil, nil
	}
	return m.find(func(p *Principal) bool { return strings.EqualFold(p.Email, email) }), nil
}

func (m *Memory) DeletePrincipal(_ context.Context, id, reassignTo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.principals[id]; !ok {
		return false, nil
	}
	if owned := m.content[id]; len(owned) > 0 {
		if _, ok := m.principals[reassignTo]; ok && reassignTo != id {
			m.content[reassignTo] = append(m.content[reassignTo], owned...)
		}
	}
	delete(m.content, id)
	delete(m.principals, id)
	return true, nil
}

func (m *Memory) SetAttribute(_ context.Context, id, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.Attributes[key] = value
	return nil
}

func (m *Memory) GetAttribute(_ context.Context, id, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[id]
	if !ok {
		return "", ErrPrincipalNotFound
	}
	return p.Attributes[key], nil
}

func (m *Memory) HasCapability(_ context.Context, id, capability string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[id]
	if !ok {
		return false, ErrPrincipalNotFound
	}
	return m.roles[p.Role].Has(capability), nil
}

func (m *Memory) CloneRole(_ context.Context, newName, displayName, baseName string, extraCaps, removedCaps []string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[newName]; ok {
		return nil, ErrRoleExists
	}
	base, ok := m.roles[baseName]
	if !ok {
		return nil, ErrRoleNotFound
	}
	r := cloneRole(base)
	r.Name = newName
	r.DisplayName = displayName
	for _, c := range extraCaps {
		r.Capabilities[c] = true
	}
	for _, c := range removedCaps {
		delete(r.Capabilities, c)
	}
	m.roles[newName] = r
	return cloneRole(r), nil
}

func (m *Memory) GetRole(_ context.Context, name string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[name]
	if !ok {
		return nil, nil
	}
	return cloneRole(r), nil
}

func (m *Memory) DeleteRole(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.roles, name)
	m.mu.Unlock()
	return nil
}

// AssignContent marca contentID como propiedad de ownerID.
func (m *Memory) AssignContent(ownerID, contentID string) {
	m.mu.Lock()
	m.content[ownerID] = append(m.content[ownerID], contentID)
	m.mu.Unlock()
}

// Content devuelve el contenido propiedad de ownerID.
func (m *Memory) Content(ownerID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.content[ownerID]...)
}
