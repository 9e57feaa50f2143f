package config

import (
	"os"
	"strconv"
	"strings"
)

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// splitList parte "a, b,,c" en [a b c].
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func applyEnvOverrides(s *Settings) {
	// AUTH
	if v, ok := getEnvStr("TL_API_KEY"); ok {
		s.Auth.APIKey = v
	}
	if v, ok := getEnvStr("TL_LICENSE_KEY"); ok {
		s.Auth.LicenseKey = v
	}

	// VENDOR
	if v, ok := getEnvStr("TL_VENDOR_NAMESPACE"); ok {
		s.Vendor.Namespace = v
	}
	if v, ok := getEnvStr("TL_VENDOR_TITLE"); ok {
		s.Vendor.Title = v
	}
	if v, ok := getEnvStr("TL_VENDOR_EMAIL"); ok {
		s.Vendor.Email = v
	}
	if v, ok := getEnvStr("TL_VENDOR_WEBSITE"); ok {
		s.Vendor.Website = v
	}
	if v, ok := getEnvStr("TL_VENDOR_SUPPORT_URL"); ok {
		s.Vendor.SupportURL = v
	}

	// ACCESO
	if v, ok := getEnvInt("TL_DECAY"); ok {
		s.Decay = &v
	}
	if v, ok := getEnvBool("TL_REQUIRE_SSL"); ok {
		s.RequireSSL = &v
	}
	if v, ok := getEnvStr("TL_WEBHOOK_URL"); ok {
		s.WebhookURL = v
	}
	if v, ok := getEnvStr("TL_SITE_URL"); ok {
		s.Site.URL = v
	}
	if v, ok := getEnvStr("TL_REMOTE_API_URL"); ok {
		s.Remote.APIURL = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		s.Server.Addr = v
	}
	if v, ok := getEnvStr("TL_ADMIN_API_KEY"); ok {
		s.Server.AdminAPIKey = v
	}

	// RATE
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		s.Rate.LoginLimit = &v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		s.Rate.LoginWindow = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		s.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		s.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		s.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		s.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		s.Cache.Redis.Prefix = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		s.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		s.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_ENCRYPTION_KEY"); ok {
		s.Storage.EncryptionKey = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		s.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		s.Session.TTL = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		s.Session.Secure = v
	}

	// NOTIFY
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		s.Notify.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		s.Notify.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		s.Notify.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		s.Notify.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		s.Notify.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_TLS_MODE"); ok {
		s.Notify.SMTP.TLSMode = strings.ToLower(v)
	}
	if v, ok := getEnvStr("NOTIFY_EMAIL_TO"); ok {
		s.Notify.SMTP.To = splitList(v)
	}

	// BOOTSTRAP
	if v, ok := getEnvStr("TL_ADMIN_USERNAME"); ok {
		s.Bootstrap.AdminUsername = v
	}
	if v, ok := getEnvStr("TL_ADMIN_EMAIL"); ok {
		s.Bootstrap.AdminEmail = v
	}

	// LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		s.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		s.Log.Level = v
	}
}

// FromEnv construye la Config sólo desde variables de entorno (sin YAML).
func FromEnv() (*Config, error) {
	var s Settings
	applyEnvOverrides(&s)
	return New(s)
}
