// Package lockdown detecta brute force sobre los identificadores de acceso y
// mantiene la máquina de estados Normal → Lockdown del namespace.
//
// Lockdown → Normal es sólo por tiempo: no hay liberación manual.
package lockdown

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/cache"
	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/config"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/metrics"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
)

const (
	maxUserAgent = 255
	// maxTracked acota el set aunque el límite configurado sea alto.
	maxTracked = 256
)

// RequestInfo datos del request entrante que se reportan a la autoridad.
type RequestInfo struct {
	UserAgent  string
	RemoteAddr string
}

// Remote es la parte del cliente remoto que usa el verificador.
type Remote interface {
	Do(ctx context.Context, method, path string, body any, requiredKeys ...string) (map[string]any, error)
}

// Checks verifica identificadores entrantes.
type Checks struct {
	cfg    *config.Config
	cache  cache.Client
	remote Remote
	sink   events.Sink
	clk    clock.Clock

	// runAsync ejecuta el reporte de brute force. Tests lo hacen sincrónico.
	runAsync func(func())
}

// Deps dependencias de Checks.
type Deps struct {
	Config *config.Config
	Cache  cache.Client
	Remote Remote
	Events events.Sink
	Clock  clock.Clock
}

// New crea el verificador.
func New(d Deps) *Checks {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &Checks{
		cfg:      d.Config,
		cache:    d.Cache,
		remote:   d.Remote,
		sink:     d.Events,
		clk:      d.Clock,
		runAsync: func(f func()) { go f() },
	}
}

func (c *Checks) lockdownKey() string { return c.cfg.Namespace() + "_in_lockdown" }
func (c *Checks) usedKey() string     { return c.cfg.Namespace() + "_used_accesskeys" }

// InLockdown reporta si el namespace está en lockdown. El marcador guarda el
// instante de entrada; se considera vigente hasta LockdownExpiry después.
func (c *Checks) InLockdown(ctx context.Context) (bool, error) {
	raw, err := c.cache.Get(ctx, c.lockdownKey())
	if cache.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// marcador corrupto: se respeta hasta que expire el TTL
		return true, nil
	}
	return c.clk.Now().Before(time.Unix(ts, 0).Add(c.cfg.LockdownExpiry())), nil
}

// Verify decide si un identificador puede intentar login.
func (c *Checks) Verify(ctx context.Context, identifier string, info RequestInfo) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("lockdown"),
		logger.Op("Verify"),
		logger.Namespace(c.cfg.Namespace()),
	)

	locked, err := c.InLockdown(ctx)
	if err != nil {
		log.Error("lockdown state unreadable", logger.Err(err))
		return apperrors.ErrInternal.WithCause(err)
	}
	if locked {
		log.Warn("login attempt during lockdown")
		return apperrors.ErrInLockdown
	}

	id := encryption.NormalizeIdentifier(identifier)
	now := c.clk.Now()

	count, err := c.recordUsed(ctx, id, now)
	if err != nil {
		log.Error("used access key set unwritable", logger.Err(err))
		return apperrors.ErrInternal.WithCause(err)
	}

	ip := ClientIP(info.RemoteAddr)
	ua := truncate(info.UserAgent, maxUserAgent)

	if count >= c.cfg.AccessKeyLimitCount() {
		if err := c.enterLockdown(ctx, now); err != nil {
			log.Error("lockdown could not be set", logger.Err(err))
			return apperrors.ErrInternal.WithCause(err)
		}
		log.Warn("brute force detected, entering lockdown", logger.Count(count), logger.ClientIP(ip))
		metrics.Lockdowns.Inc()
		c.sink.Emit(ctx, events.Name(c.cfg.Namespace(), events.LockdownAfter), events.Payload{
			"timestamp": now.Unix(),
			"user_ip":   ip,
		})
		c.reportBruteForce(ctx, now, ua, ip)
		return apperrors.ErrBruteForceDetected
	}

	body := map[string]any{
		"identifier": id,
		"timestamp":  now.Unix(),
		"user_agent": ua,
		"user_ip":    nullable(ip),
	}
	if _, err := c.remote.Do(ctx, "POST", "verify-identifier", body); err != nil {
		log.Info("identifier rejected by trust authority", logger.Identifier(id), logger.Err(err))
		return apperrors.ErrRemoteRejected.WithCause(err)
	}
	return nil
}

// recordUsed inserta id en el set de la ventana y devuelve el tamaño resultante.
func (c *Checks) recordUsed(ctx context.Context, id string, now time.Time) (int, error) {
	n, err := c.cache.TrackWindow(ctx, c.usedKey(), id, now, c.cfg.AccessKeyLimitExpiry(), maxTracked)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *Checks) enterLockdown(ctx context.Context, now time.Time) error {
	if err := c.cache.Set(ctx, c.lockdownKey(), strconv.FormatInt(now.Unix(), 10), c.cfg.LockdownExpiry()); err != nil {
		return err
	}
	// el conteo arranca de cero cuando el lockdown vence
	return c.cache.Delete(ctx, c.usedKey())
}

// reportBruteForce avisa a la autoridad remota. Best-effort: sólo se loguea.
func (c *Checks) reportBruteForce(ctx context.Context, now time.Time, ua, ip string) {
	bg := context.WithoutCancel(ctx)
	body := map[string]any{
		"timestamp":  now.Unix(),
		"user_agent": ua,
		"user_ip":    nullable(ip),
	}
	c.runAsync(func() {
		if _, err := c.remote.Do(bg, "POST", "report-brute-force", body); err != nil {
			logger.From(bg).Warn("brute force report failed", logger.Component("lockdown"), logger.Err(err))
			return
		}
		logger.From(bg).Debug("brute force reported", logger.Component("lockdown"), zap.Int64("timestamp", now.Unix()))
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
