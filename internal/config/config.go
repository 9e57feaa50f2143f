package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vendor identifica al vendor que presta soporte.
type Vendor struct {
	Namespace     string `yaml:"namespace,omitempty"`
	Title         string `yaml:"title,omitempty"`
	DisplayName   string `yaml:"display_name,omitempty"`
	Email         string `yaml:"email,omitempty"`
	Website       string `yaml:"website,omitempty"`
	SupportURL    string `yaml:"support_url,omitempty"`
	LogoURL       string `yaml:"logo_url,omitempty"`
	PublicKeyPath string `yaml:"public_key_path,omitempty"`
}

// Settings es la forma tipada del YAML. Los punteros distinguen "no seteado" de cero.
type Settings struct {
	Auth struct {
		APIKey          string `yaml:"api_key,omitempty"`
		LicenseKey      string `yaml:"license_key,omitempty"`
		AccessKeyPrefix string `yaml:"access_key_prefix,omitempty"`
	} `yaml:"auth,omitempty"`

	Vendor Vendor `yaml:"vendor,omitempty"`

	// Decay en segundos. nil => default (1 semana), 0 => nunca expira.
	Decay *int `yaml:"decay,omitempty"`

	// Role base que se clona para el rol de soporte.
	Role string `yaml:"role,omitempty"`

	// Caps: capability => motivo (se muestra al admin del sitio).
	Caps struct {
		Add    map[string]string `yaml:"add,omitempty"`
		Remove map[string]string `yaml:"remove,omitempty"`
	} `yaml:"caps,omitempty"`

	RequireSSL      *bool  `yaml:"require_ssl,omitempty"`
	ReassignContent *bool  `yaml:"reassign_content,omitempty"`
	WebhookURL      string `yaml:"webhook_url,omitempty"`

	Site struct {
		URL string `yaml:"url,omitempty"`
	} `yaml:"site,omitempty"`

	Remote struct {
		APIURL string `yaml:"api_url,omitempty"`
	} `yaml:"remote,omitempty"`

	Security struct {
		AccessKeyLimitCount  *int `yaml:"accesskey_limit_count,omitempty"`
		AccessKeyLimitExpiry *int `yaml:"accesskey_limit_expiry,omitempty"` // segundos
		LockdownExpiry       *int `yaml:"lockdown_expiry,omitempty"`        // segundos
	} `yaml:"security,omitempty"`

	// ───────── Runtime (no forman parte del contrato del vendor) ─────────

	// Rate limit por IP del login público. login_limit 0 lo desactiva.
	Rate struct {
		LoginLimit  *int   `yaml:"login_limit,omitempty"`
		LoginWindow string `yaml:"login_window,omitempty"`
	} `yaml:"rate,omitempty"`

	Server struct {
		Addr        string `yaml:"addr,omitempty"`
		AdminAPIKey string `yaml:"admin_api_key,omitempty"`
	} `yaml:"server,omitempty"`

	Cache struct {
		Kind  string `yaml:"kind,omitempty"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr,omitempty"`
			Password string `yaml:"password,omitempty"`
			DB       int    `yaml:"db,omitempty"`
			Prefix   string `yaml:"prefix,omitempty"`
		} `yaml:"redis,omitempty"`
	} `yaml:"cache,omitempty"`

	Storage struct {
		Driver string `yaml:"driver,omitempty"` // memory | postgres
		DSN    string `yaml:"dsn,omitempty"`
		// EncryptionKey (32 bytes, base64 o hex) cifra las opciones en reposo.
		EncryptionKey string `yaml:"encryption_key,omitempty"`
	} `yaml:"storage,omitempty"`

	Session struct {
		Secret     string `yaml:"secret,omitempty"`
		TTL        string `yaml:"ttl,omitempty"`
		CookieName string `yaml:"cookie_name,omitempty"`
		Secure     bool   `yaml:"secure,omitempty"`
	} `yaml:"session,omitempty"`

	// Notificación por email de accesos creados/revocados y lockdowns.
	// Sin smtp.host queda desactivada.
	Notify struct {
		SMTP struct {
			Host     string   `yaml:"host,omitempty"`
			Port     int      `yaml:"port,omitempty"`
			From     string   `yaml:"from,omitempty"`
			Username string   `yaml:"username,omitempty"`
			Password string   `yaml:"password,omitempty"`
			TLSMode  string   `yaml:"tls_mode,omitempty"` // auto | starttls | ssl | none
			To       []string `yaml:"to,omitempty"`
		} `yaml:"smtp,omitempty"`
	} `yaml:"notify,omitempty"`

	Log struct {
		Env   string `yaml:"env,omitempty"`
		Level string `yaml:"level,omitempty"`
	} `yaml:"log,omitempty"`

	Bootstrap struct {
		AdminUsername string `yaml:"admin_username,omitempty"`
		AdminEmail    string `yaml:"admin_email,omitempty"`
	} `yaml:"bootstrap,omitempty"`
}

// Defaults
const (
	DefaultDecay                = 7 * 24 * 60 * 60
	DefaultRole                 = "editor"
	DefaultAccessKeyPrefix      = "TL|"
	DefaultAPIURL               = "https://app.trustedlogin.com/api/v1/"
	DefaultPublicKeyPath        = "wp-json/trustedlogin/v1/public_key"
	DefaultAccessKeyLimitCount  = 3
	DefaultAccessKeyLimitExpiry = 10 * 60
	DefaultLockdownExpiry       = 20 * 60
	DefaultLoginRateLimit       = 10
	DefaultLoginRateWindow      = "1m"
)

// Config es inmutable después de New. Los componentes la reciben por referencia
// y sólo la leen.
type Config struct {
	s    Settings
	tree map[string]any
}

// New aplica defaults, valida y congela la configuración. Una Settings inválida
// nunca produce un *Config: el error enumera todos los campos con problemas.
func New(s Settings) (*Config, error) {
	applyDefaults(&s)

	c := &Config{s: s}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.tree = buildTree(s)
	return c, nil
}

// Load lee un YAML, aplica overrides por env y construye la Config.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnvOverrides(&s)
	return New(s)
}

func applyDefaults(s *Settings) {
	if s.Decay == nil {
		d := DefaultDecay
		s.Decay = &d
	}
	if strings.TrimSpace(s.Role) == "" {
		s.Role = DefaultRole
	}
	if s.RequireSSL == nil {
		v := true
		s.RequireSSL = &v
	}
	if s.ReassignContent == nil {
		v := true
		s.ReassignContent = &v
	}
	if s.Auth.AccessKeyPrefix == "" {
		s.Auth.AccessKeyPrefix = DefaultAccessKeyPrefix
	}
	if s.Remote.APIURL == "" {
		s.Remote.APIURL = DefaultAPIURL
	}
	if s.Vendor.PublicKeyPath == "" {
		s.Vendor.PublicKeyPath = DefaultPublicKeyPath
	}
	if s.Vendor.DisplayName == "" {
		s.Vendor.DisplayName = s.Vendor.Title
	}
	if s.Security.AccessKeyLimitCount == nil {
		v := DefaultAccessKeyLimitCount
		s.Security.AccessKeyLimitCount = &v
	}
	if s.Security.AccessKeyLimitExpiry == nil {
		v := DefaultAccessKeyLimitExpiry
		s.Security.AccessKeyLimitExpiry = &v
	}
	if s.Security.LockdownExpiry == nil {
		v := DefaultLockdownExpiry
		s.Security.LockdownExpiry = &v
	}
	if s.Server.Addr == "" {
		s.Server.Addr = ":8080"
	}
	if s.Cache.Kind == "" {
		s.Cache.Kind = "memory"
	}
	if s.Storage.Driver == "" {
		s.Storage.Driver = "memory"
	}
	if s.Rate.LoginLimit == nil {
		v := DefaultLoginRateLimit
		s.Rate.LoginLimit = &v
	}
	if s.Rate.LoginWindow == "" {
		s.Rate.LoginWindow = DefaultLoginRateWindow
	}
	if s.Session.TTL == "" {
		s.Session.TTL = "2h"
	}
	if s.Notify.SMTP.Host != "" {
		if s.Notify.SMTP.Port == 0 {
			s.Notify.SMTP.Port = 587
		}
		if s.Notify.SMTP.TLSMode == "" {
			s.Notify.SMTP.TLSMode = "auto"
		}
	}
	if s.Session.CookieName == "" {
		s.Session.CookieName = "tl_session"
	}
}

// Get obtiene un setting anidado con path delimitado por "/" (ej: "vendor/title").
// Si algún segmento no existe retorna def. Un cero explícito NO es ausencia.
func (c *Config) Get(path string, def any) any {
	if c == nil || c.tree == nil {
		return def
	}
	var cur any = c.tree
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		v, ok := m[seg]
		if !ok {
			return def
		}
		cur = v
	}
	return cur
}

// Namespace devuelve el namespace del vendor normalizado a slug. Es el prefijo de
// toda key persistida, job programado y evento emitido.
func (c *Config) Namespace() string {
	return Slugify(c.s.Vendor.Namespace)
}

// Slugify normaliza s a [a-z0-9_-], colapsando separadores.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ───────── Accessors tipados ─────────

func (c *Config) APIKey() string          { return c.s.Auth.APIKey }
func (c *Config) LicenseKey() string      { return c.s.Auth.LicenseKey }
func (c *Config) AccessKeyPrefix() string { return c.s.Auth.AccessKeyPrefix }
func (c *Config) Vendor() Vendor          { return c.s.Vendor }
func (c *Config) Role() string            { return c.s.Role }
func (c *Config) WebhookURL() string      { return c.s.WebhookURL }
func (c *Config) SiteURL() string         { return strings.TrimRight(c.s.Site.URL, "/") }
func (c *Config) APIURL() string          { return c.s.Remote.APIURL }

// Decay devuelve la duración del acceso. Cero significa que nunca expira.
func (c *Config) Decay() time.Duration {
	if c.s.Decay == nil {
		return DefaultDecay * time.Second
	}
	return time.Duration(*c.s.Decay) * time.Second
}

func (c *Config) RequireSSL() bool {
	return c.s.RequireSSL == nil || *c.s.RequireSSL
}

func (c *Config) ReassignContent() bool {
	return c.s.ReassignContent == nil || *c.s.ReassignContent
}

// CapsAdd devuelve una copia del mapa de capabilities extra.
func (c *Config) CapsAdd() map[string]string { return cloneMap(c.s.Caps.Add) }

// CapsRemove devuelve una copia del mapa de capabilities removidas.
func (c *Config) CapsRemove() map[string]string { return cloneMap(c.s.Caps.Remove) }

func (c *Config) AccessKeyLimitCount() int {
	return intOr(c.s.Security.AccessKeyLimitCount, DefaultAccessKeyLimitCount)
}

func (c *Config) AccessKeyLimitExpiry() time.Duration {
	return time.Duration(intOr(c.s.Security.AccessKeyLimitExpiry, DefaultAccessKeyLimitExpiry)) * time.Second
}

func (c *Config) LockdownExpiry() time.Duration {
	return time.Duration(intOr(c.s.Security.LockdownExpiry, DefaultLockdownExpiry)) * time.Second
}

// Settings devuelve una copia de los settings (para bloques de runtime).
func (c *Config) Settings() Settings {
	s := c.s
	s.Caps.Add = cloneMap(c.s.Caps.Add)
	s.Caps.Remove = cloneMap(c.s.Caps.Remove)
	s.Notify.SMTP.To = append([]string(nil), c.s.Notify.SMTP.To...)
	return s
}

// SessionTTL parsea session.ttl; el valor ya fue validado en New.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.s.Session.TTL)
	if err != nil || d <= 0 {
		return 2 * time.Hour
	}
	return d
}

// LoginRateLimit devuelve el límite de intentos de login por IP y su ventana.
// Un límite 0 significa desactivado.
func (c *Config) LoginRateLimit() (int, time.Duration) {
	w, err := time.ParseDuration(c.s.Rate.LoginWindow)
	if err != nil || w <= 0 {
		w = time.Minute
	}
	return intOr(c.s.Rate.LoginLimit, DefaultLoginRateLimit), w
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
