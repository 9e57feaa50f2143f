// Package configtest arma configuraciones válidas para tests de otros paquetes.
package configtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustedlogin/internal/config"
)

// Settings devuelve settings mínimos válidos para el namespace "acme".
func Settings() config.Settings {
	var s config.Settings
	s.Auth.APIKey = "pub_acme_0123456789"
	s.Vendor = config.Vendor{
		Namespace:  "acme",
		Title:      "Acme",
		Email:      "support@acme.test",
		Website:    "https://acme.test",
		SupportURL: "https://acme.test/support",
	}
	s.Site.URL = "https://site.test"
	return s
}

// New construye la Config aplicando mutate sobre Settings().
func New(t testing.TB, mutate ...func(*config.Settings)) *config.Config {
	t.Helper()
	s := Settings()
	for _, m := range mutate {
		m(&s)
	}
	c, err := config.New(s)
	require.NoError(t, err)
	return c
}

// Int devuelve un puntero a v.
func Int(v int) *int { return &v }

// Bool devuelve un puntero a v.
func Bool(v bool) *bool { return &v }
