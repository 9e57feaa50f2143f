// Package access implementa el ciclo de vida del acceso de soporte: grant,
// login por identificador, revocación (manual, programada o total) y el
// endpoint público de login.
package access

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/config"
	"github.com/dropDatabas3/trustedlogin/internal/directory"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/scheduler"
	"github.com/dropDatabas3/trustedlogin/internal/security/lockdown"
	"github.com/dropDatabas3/trustedlogin/internal/session"
	"github.com/dropDatabas3/trustedlogin/internal/siteaccess"
	"github.com/dropDatabas3/trustedlogin/internal/store"
)

const (
	componentAccess = "access"

	// CapCreateUsers es la capability requerida para otorgar acceso.
	CapCreateUsers = "create_users"

	// identifierBytes es la entropía del identificador crudo.
	identifierBytes = 64

	// RevokeAll revoca todos los accesos del namespace.
	RevokeAll = "all"
)

// deniedCaps se quitan siempre del rol de soporte, después de agregar las extra.
var deniedCaps = []string{
	"create_users",
	"delete_users",
	"edit_users",
	"promote_users",
	"delete_site",
	"remove_users",
}

// Triggers de revocación (label de métricas y payload de eventos).
const (
	TriggerManual    = "manual"
	TriggerAll       = "all"
	TriggerExpired   = "expired"
	TriggerScheduled = "scheduled"
)

// SiteSync sincroniza el grant con la autoridad remota.
type SiteSync interface {
	CreateRemoteSite(ctx context.Context, secretID, identifier string, meta siteaccess.Meta) error
	RevokeRemoteSite(ctx context.Context, identifier string) error
	AccessKey(ctx context.Context) (string, error)
}

// Verifier es el chequeo de brute force previo al login.
type Verifier interface {
	Verify(ctx context.Context, identifier string, info lockdown.RequestInfo) error
}

// Sessions inicia la sesión del host para un principal.
type Sessions interface {
	Start(ctx context.Context, p directory.Principal) (*session.Session, error)
}

// GrantResult es lo que recibe el caller privilegiado tras un grant. Identifier
// es el secreto crudo y sólo se entrega esta vez.
type GrantResult struct {
	PrincipalID string
	Identifier  string
	SecretID    string
	Endpoint    string
	LoginURL    string
	AccessKey   string
	ExpiresAt   time.Time // cero: no expira
	// SyncErr es el error de sincronización remota. El grant local queda
	// utilizable aunque no sea nil.
	SyncErr error
}

// LoginResult es el resultado de un login exitoso.
type LoginResult struct {
	Principal directory.Principal
	Session   *session.Session
}

// LoginRequest es el request público de login.
type LoginRequest struct {
	Endpoint   string
	Identifier string
	UserAgent  string
	RemoteAddr string
}

// Grant describe un acceso activo (sin secretos).
type Grant struct {
	PrincipalID string
	Username    string
	CreatedBy   string
	ExpiresAt   time.Time
}

// Service es el ciclo de vida del acceso para un namespace.
type Service interface {
	Grant(ctx context.Context, requesterID string) (*GrantResult, error)
	Login(ctx context.Context, rawIdentifier string) (*LoginResult, error)
	// Revoke acepta un identificador (crudo o hasheado) o RevokeAll. Retorna
	// false sin error si no había nada que revocar.
	Revoke(ctx context.Context, identifier string) (bool, error)
	// ProcessLogin es el camino público: el resultado es sólo un booleano, el
	// motivo de un rechazo queda en los logs.
	ProcessLogin(ctx context.Context, req LoginRequest) (*LoginResult, bool)
	// HandleScheduledRevoke es el handler del job de expiración.
	HandleScheduledRevoke(ctx context.Context, args []string) error
	List(ctx context.Context) ([]Grant, error)
	JobKey() string
	RoleName() string
}

// Deps son las dependencias del servicio.
type Deps struct {
	Config    *config.Config
	Directory directory.Directory
	Options   *store.Namespaced
	Scheduler scheduler.Scheduler
	Site      SiteSync
	Checks    Verifier
	Sessions  Sessions
	Events    events.Sink
	Clock     clock.Clock
}

type service struct {
	cfg      *config.Config
	dir      directory.Directory
	endpoint *Endpoint
	sched    scheduler.Scheduler
	site     SiteSync
	checks   Verifier
	sessions Sessions
	sink     events.Sink
	clk      clock.Clock
	mu       *sync.Mutex
}

// nsLocks serializa grant/revoke por namespace dentro del proceso.
var nsLocks sync.Map

func lockFor(ns string) *sync.Mutex {
	v, _ := nsLocks.LoadOrStore(ns, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// NewService crea el servicio.
func NewService(d Deps) Service {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &service{
		cfg:      d.Config,
		dir:      d.Directory,
		endpoint: NewEndpoint(d.Options),
		sched:    d.Scheduler,
		site:     d.Site,
		checks:   d.Checks,
		sessions: d.Sessions,
		sink:     d.Events,
		clk:      d.Clock,
		mu:       lockFor(d.Config.Namespace()),
	}
}

func (s *service) ns() string { return s.cfg.Namespace() }

func (s *service) idKey() string        { return s.ns() + "_id" }
func (s *service) expiresKey() string   { return s.ns() + "_expires" }
func (s *service) createdByKey() string { return s.ns() + "_created_by" }

func (s *service) RoleName() string { return s.ns() + "-support" }
func (s *service) JobKey() string   { return "trustedlogin/" + s.ns() + "/access/revoke" }

func (s *service) supportUsername() string { return s.cfg.Vendor().Title + " Support" }

func (s *service) loginURL(endpoint string) string { return s.cfg.SiteURL() + "/" + endpoint }

func (s *service) expiresAt(ctx context.Context, principalID string) (time.Time, error) {
	raw, err := s.dir.GetAttribute(ctx, principalID, s.expiresKey())
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts, 0), nil
}

func (s *service) List(ctx context.Context) ([]Grant, error) {
	ps, err := s.dir.FindByRole(ctx, s.RoleName())
	if err != nil {
		return nil, err
	}
	out := make([]Grant, 0, len(ps))
	for _, p := range ps {
		exp, _ := s.expiresAt(ctx, p.ID)
		out = append(out, Grant{
			PrincipalID: p.ID,
			Username:    p.Username,
			CreatedBy:   p.Attributes[s.createdByKey()],
			ExpiresAt:   exp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrincipalID < out[j].PrincipalID })
	return out, nil
}
