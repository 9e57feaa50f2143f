package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/trustedlogin/internal/security/secretbox"
)

// FieldError describe un setting inválido.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Message }

// ValidationError acumula todas las violaciones encontradas en una pasada.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("config: %d invalid setting(s): %s", len(e.Fields), strings.Join(parts, "; "))
}

// Has indica si el campo dado está entre las violaciones.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Validate revisa la configuración completa sin cortar en el primer error.
// Retorna nil o *ValidationError.
func (c *Config) Validate() error {
	if c == nil {
		return &ValidationError{Fields: []FieldError{{Field: "config", Message: "is nil"}}}
	}
	s := c.s
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if strings.TrimSpace(s.Auth.APIKey) == "" {
		add("auth/api_key", "is required")
	}

	required := []struct {
		field string
		value string
	}{
		{"vendor/namespace", s.Vendor.Namespace},
		{"vendor/title", s.Vendor.Title},
		{"vendor/website", s.Vendor.Website},
		{"vendor/support_url", s.Vendor.SupportURL},
		{"vendor/email", s.Vendor.Email},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			add(r.field, "is required")
		}
	}

	if strings.TrimSpace(s.Vendor.Namespace) != "" && Slugify(s.Vendor.Namespace) == "" {
		add("vendor/namespace", "must contain at least one URL-safe character")
	}
	if e := strings.TrimSpace(s.Vendor.Email); e != "" {
		if _, err := mail.ParseAddress(e); err != nil {
			add("vendor/email", "must be a valid email address")
		}
	}

	urls := []struct {
		field string
		value string
	}{
		{"webhook_url", s.WebhookURL},
		{"vendor/website", s.Vendor.Website},
		{"vendor/support_url", s.Vendor.SupportURL},
		{"vendor/logo_url", s.Vendor.LogoURL},
	}
	for _, u := range urls {
		if strings.TrimSpace(u.value) != "" && !IsHTTPURL(u.value) {
			add(u.field, "must be a well-formed http(s) URL")
		}
	}

	if strings.TrimSpace(s.Site.URL) == "" {
		add("site/url", "is required")
	} else if !IsHTTPURL(s.Site.URL) {
		add("site/url", "must be a well-formed http(s) URL")
	}
	if s.Remote.APIURL != "" && !IsHTTPURL(s.Remote.APIURL) {
		add("remote/api_url", "must be a well-formed http(s) URL")
	}

	if s.Decay != nil && *s.Decay < 0 {
		add("decay", "must be zero (never expires) or a positive number of seconds")
	}
	if p := s.Security.AccessKeyLimitCount; p != nil && *p < 1 {
		add("security/accesskey_limit_count", "must be at least 1")
	}
	if p := s.Security.AccessKeyLimitExpiry; p != nil && *p < 1 {
		add("security/accesskey_limit_expiry", "must be a positive number of seconds")
	}
	if p := s.Security.LockdownExpiry; p != nil && *p < 1 {
		add("security/lockdown_expiry", "must be a positive number of seconds")
	}
	if s.Session.TTL != "" {
		if d, err := time.ParseDuration(s.Session.TTL); err != nil || d <= 0 {
			add("session/ttl", "must be a positive duration")
		}
	}
	if p := s.Rate.LoginLimit; p != nil && *p < 0 {
		add("rate/login_limit", "must be zero (disabled) or positive")
	}
	if s.Rate.LoginWindow != "" {
		if d, err := time.ParseDuration(s.Rate.LoginWindow); err != nil || d <= 0 {
			add("rate/login_window", "must be a positive duration")
		}
	}
	if n := s.Notify.SMTP; strings.TrimSpace(n.Host) != "" {
		if n.Port < 0 || n.Port > 65535 {
			add("notify/smtp/port", "must be a valid TCP port")
		}
		if _, err := mail.ParseAddress(n.From); err != nil {
			add("notify/smtp/from", "must be a valid email address")
		}
		if len(n.To) == 0 {
			add("notify/smtp/to", "needs at least one recipient")
		}
		for _, to := range n.To {
			if _, err := mail.ParseAddress(to); err != nil {
				add("notify/smtp/to", fmt.Sprintf("%q is not a valid email address", to))
			}
		}
		switch n.TLSMode {
		case "", "auto", "starttls", "ssl", "none":
		default:
			add("notify/smtp/tls_mode", "must be auto, starttls, ssl or none")
		}
	}
	if s.Storage.EncryptionKey != "" {
		if _, err := secretbox.ParseKey(s.Storage.EncryptionKey); err != nil {
			add("storage/encryption_key", "must decode to 32 bytes (base64 or hex)")
		}
	}
	switch s.Cache.Kind {
	case "", "memory", "redis":
	default:
		add("cache/kind", "must be memory or redis")
	}
	switch s.Storage.Driver {
	case "", "memory":
	case "postgres":
		if strings.TrimSpace(s.Storage.DSN) == "" {
			add("storage/dsn", "is required for the postgres driver")
		}
	default:
		add("storage/driver", "must be memory or postgres")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// IsHTTPURL indica si raw es una URL absoluta http(s) con host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
