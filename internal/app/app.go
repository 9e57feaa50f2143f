// Package app arma el grafo de dependencias del servicio a partir de la Config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/trustedlogin/internal/access"
	"github.com/dropDatabas3/trustedlogin/internal/bootstrap"
	"github.com/dropDatabas3/trustedlogin/internal/cache"
	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/config"
	"github.com/dropDatabas3/trustedlogin/internal/directory"
	"github.com/dropDatabas3/trustedlogin/internal/email"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/http/controllers"
	"github.com/dropDatabas3/trustedlogin/internal/http/router"
	"github.com/dropDatabas3/trustedlogin/internal/metrics"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/rate"
	"github.com/dropDatabas3/trustedlogin/internal/remote"
	"github.com/dropDatabas3/trustedlogin/internal/scheduler"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
	"github.com/dropDatabas3/trustedlogin/internal/security/lockdown"
	"github.com/dropDatabas3/trustedlogin/internal/security/secretbox"
	"github.com/dropDatabas3/trustedlogin/internal/session"
	"github.com/dropDatabas3/trustedlogin/internal/siteaccess"
	"github.com/dropDatabas3/trustedlogin/internal/store"
	"github.com/dropDatabas3/trustedlogin/internal/store/pg"
)

// Version del binario, expuesta en /healthz.
var Version = "dev"

// Options ajusta el armado (tests). El valor cero usa los defaults de producción.
type Options struct {
	Clock      clock.Clock
	HTTPClient *http.Client
	// URLOverride cambia la base de la API remota por namespace.
	URLOverride remote.URLOverride
	// Registerer para los collectors. nil => prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer que expone /metrics. nil => prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Mailer reemplaza el sender SMTP de notify/smtp.
	Mailer email.Sender
}

// App es el servicio cableado.
type App struct {
	Config    *config.Config
	Handler   http.Handler
	Access    access.Service
	Site      *siteaccess.Service
	Keys      *encryption.Keys
	Directory *directory.Memory
	Scheduler *scheduler.InProcess
	Cache     cache.Client
	Options   *store.Namespaced
	Sessions  *session.Manager

	// AdminID es el administrador creado o detectado por bootstrap ("" si no
	// hay bootstrap configurado).
	AdminID string

	closers []func()
}

// New construye todos los componentes. Ante un error libera lo ya abierto.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"), logger.Namespace(cfg.Namespace()))
	s := cfg.Settings()

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	// ─── Cache (lockdown + keys usadas) ───
	cc, err := cache.New(ctx, cache.Config{
		Driver:   s.Cache.Kind,
		Addr:     s.Cache.Redis.Addr,
		Password: s.Cache.Redis.Password,
		DB:       s.Cache.Redis.DB,
		Prefix:   s.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	a.Cache = cc
	a.closers = append(a.closers, func() { _ = cc.Close() })

	health := map[string]controllers.Pinger{"cache": cc}

	// ─── Option store ───
	var optStore store.OptionStore
	switch s.Storage.Driver {
	case "postgres":
		pgs, err := pg.New(ctx, s.Storage.DSN, pg.Config{})
		if err != nil {
			return nil, fmt.Errorf("app: storage: %w", err)
		}
		a.closers = append(a.closers, pgs.Close)
		if err := pgs.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("app: storage migrate: %w", err)
		}
		optStore = pgs
		health["store"] = pgs
	default:
		optStore = store.NewMemory()
	}
	if s.Storage.EncryptionKey != "" {
		key, err := secretbox.ParseKey(s.Storage.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("app: storage encryption key: %w", err)
		}
		box, err := secretbox.New(key)
		if err != nil {
			return nil, fmt.Errorf("app: storage encryption: %w", err)
		}
		optStore = store.Seal(optStore, box)
	}
	a.Options = store.WithNamespace(cfg.Namespace(), optStore)

	// ─── Host ───
	a.Directory = directory.NewMemory()
	a.Scheduler = scheduler.New(clk)
	a.closers = append(a.closers, a.Scheduler.Close)

	// ─── Autoridad remota ───
	var ropts []remote.Option
	if opts.HTTPClient != nil {
		ropts = append(ropts, remote.WithHTTPClient(opts.HTTPClient))
	}
	if opts.URLOverride != nil {
		ropts = append(ropts, remote.WithURLOverride(opts.URLOverride))
	}
	rc := remote.New(cfg, ropts...)
	a.Keys = encryption.NewKeys(cfg, rc, a.Options)
	a.Site = siteaccess.New(cfg, a.Keys, rc, a.Options)

	sink := events.Multi{events.LogSink{}}
	if wh := events.NewWebhook(cfg.WebhookURL()); wh != nil {
		sink = append(sink, wh)
	}
	if n := s.Notify.SMTP; n.Host != "" {
		sender := opts.Mailer
		if sender == nil {
			sender = email.NewSMTPSender(email.SMTPConfig{
				Host:     n.Host,
				Port:     n.Port,
				From:     n.From,
				Username: n.Username,
				Password: n.Password,
				TLSMode:  n.TLSMode,
			})
		}
		notifier := email.NewNotifier(email.NotifierConfig{
			Sender:         sender,
			To:             n.To,
			Vendor:         cfg.Vendor().DisplayName,
			SiteURL:        cfg.SiteURL(),
			LockdownExpiry: cfg.LockdownExpiry(),
			Clock:          clk,
		})
		a.closers = append(a.closers, notifier.Close)
		sink = append(sink, notifier)
	}

	checks := lockdown.New(lockdown.Deps{
		Config: cfg,
		Cache:  cc,
		Remote: rc,
		Events: sink,
		Clock:  clk,
	})

	secret := s.Session.Secret
	if secret == "" {
		if secret, err = encryption.RandomHex(32); err != nil {
			return nil, fmt.Errorf("app: session secret: %w", err)
		}
		log.Warn("session.secret not set, using an ephemeral secret; sessions will not survive a restart")
	}
	a.Sessions, err = session.NewManager(session.Options{
		Secret:     []byte(secret),
		TTL:        cfg.SessionTTL(),
		CookieName: s.Session.CookieName,
		Secure:     s.Session.Secure,
		Namespace:  cfg.Namespace(),
		Clock:      clk,
	})
	if err != nil {
		return nil, fmt.Errorf("app: sessions: %w", err)
	}

	a.Access = access.NewService(access.Deps{
		Config:    cfg,
		Directory: a.Directory,
		Options:   a.Options,
		Scheduler: a.Scheduler,
		Site:      a.Site,
		Checks:    checks,
		Sessions:  a.Sessions,
		Events:    sink,
		Clock:     clk,
	})
	a.Scheduler.Register(a.Access.JobKey(), a.Access.HandleScheduledRevoke)

	if err := metrics.Register(opts.Registerer); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	if s.Bootstrap.AdminUsername != "" {
		a.AdminID, _, err = bootstrap.EnsureAdmin(ctx, a.Directory, bootstrap.AdminConfig{
			Username: s.Bootstrap.AdminUsername,
			Email:    s.Bootstrap.AdminEmail,
		})
		if err != nil {
			return nil, err
		}
	}

	var loginLimiter rate.Limiter
	if n, window := cfg.LoginRateLimit(); n > 0 {
		loginLimiter = rate.NewFixedWindow(cc, "rl:"+cfg.Namespace()+":login:", n, window)
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	a.Handler = router.New(router.Deps{
		Namespace:    cfg.Namespace(),
		AdminAPIKey:  s.Server.AdminAPIKey,
		LoginLimiter: loginLimiter,
		Access:       controllers.NewAccessController(a.Access, a.Site),
		Login:        controllers.NewLoginController(a.Access, a.Sessions),
		Health:       controllers.NewHealthController(Version, health),
		Metrics:      promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	})

	log.Info("app wired",
		logger.String("cache", s.Cache.Kind),
		logger.String("storage", s.Storage.Driver),
		logger.Bool("storage_sealed", s.Storage.EncryptionKey != ""),
		logger.Bool("webhook", cfg.WebhookURL() != ""),
		logger.Bool("email_notify", s.Notify.SMTP.Host != ""),
	)
	return a, nil
}

// Close libera los recursos en orden inverso de apertura.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
