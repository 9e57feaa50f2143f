package app

import (
	"context"
	"fmt"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/trustedlogin/internal/config"
	"github.com/dropDatabas3/trustedlogin/internal/config/configtest"
	"github.com/dropDatabas3/trustedlogin/internal/email"
	mw "github.com/dropDatabas3/trustedlogin/internal/http/middlewares"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// authority simula la autoridad remota y el sitio del vendor.
type authority struct {
	mu    sync.Mutex
	calls []string
	auth  []string
	pub   string
}

func (a *authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.calls = append(a.calls, r.Method+" "+r.URL.Path)
	a.auth = append(a.auth, r.Header.Get("Authorization"))
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/vendor/public_key":
		_ = json.NewEncoder(w).Encode(map[string]string{"publicKey": a.pub})
	default:
		_, _ = io.WriteString(w, `{"success":true}`)
	}
}

func (a *authority) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func newAuthority(t *testing.T) (*authority, *httptest.Server) {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	a := &authority{pub: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))}
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	return a, srv
}

func newApp(t *testing.T, base string) *App {
	t.Helper()
	cfg := configtest.New(t, func(s *config.Settings) {
		s.Vendor.Website = base + "/vendor"
		s.Vendor.PublicKeyPath = "public_key"
		s.Remote.APIURL = base + "/api/"
		s.Server.AdminAPIKey = "admin-key"
		s.Bootstrap.AdminUsername = "siteadmin"
		s.Bootstrap.AdminEmail = "admin@site.test"
		s.Storage.EncryptionKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="
	})
	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), cfg, Options{Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func adminReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(mw.HeaderAdminAPIKey, "admin-key")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestApp_GrantLoginRevoke(t *testing.T) {
	auth, srv := newAuthority(t)
	a := newApp(t, srv.URL)
	require.NotEmpty(t, a.AdminID)

	rr := serve(a.Handler, adminReq(http.MethodPost, "/admin/access", `{"requester_id":"`+a.AdminID+`"}`))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var grant struct {
		Identifier string `json:"identifier"`
		LoginURL   string `json:"login_url"`
		AccessKey  string `json:"access_key"`
		SyncError  string `json:"sync_error"`
		ExpiresAt  string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grant))
	require.Len(t, grant.Identifier, 128)
	require.Empty(t, grant.SyncError)
	require.NotEmpty(t, grant.ExpiresAt)
	require.True(t, strings.HasPrefix(grant.AccessKey, "TL|"))
	require.Equal(t, 1, a.Scheduler.Len())

	u, err := url.Parse(grant.LoginURL)
	require.NoError(t, err)
	require.Equal(t, "site.test", u.Host)

	form := url.Values{"identifier": {grant.Identifier}}
	login := httptest.NewRequest(http.MethodPost, u.Path, strings.NewReader(form.Encode()))
	login.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = serve(a.Handler, login)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"success":true}`, rr.Body.String())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	claims, err := a.Sessions.Parse(cookies[0].Value)
	require.NoError(t, err)
	require.Equal(t, "acme", claims.Namespace)

	rr = serve(a.Handler, adminReq(http.MethodGet, "/admin/access", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Acme Support")

	rr = serve(a.Handler, adminReq(http.MethodGet, "/admin/access-key", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), grant.AccessKey)

	rr = serve(a.Handler, adminReq(http.MethodDelete, "/admin/access/all", ""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 0, a.Scheduler.Len())

	rr = serve(a.Handler, adminReq(http.MethodDelete, "/admin/access/all", ""))
	require.Equal(t, http.StatusNotFound, rr.Code)

	calls := auth.Calls()
	require.Contains(t, calls, "GET /vendor/public_key")
	require.Contains(t, calls, "POST /api/sites")
	require.Contains(t, calls, "POST /api/verify-identifier")
	require.Contains(t, strings.Join(calls, ","), "DELETE /api/sites/")
	auth.mu.Lock()
	for i, h := range auth.auth {
		if strings.HasPrefix(auth.calls[i], "GET /vendor/") {
			require.Empty(t, h, "vendor site never gets the api key")
			continue
		}
		require.Equal(t, "Bearer pub_acme_0123456789", h, auth.calls[i])
	}
	auth.mu.Unlock()

	rr = serve(a.Handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "trustedlogin_grants_total")
}

func TestApp_LoginRejectsWrongIdentifier(t *testing.T) {
	_, srv := newAuthority(t)
	a := newApp(t, srv.URL)

	rr := serve(a.Handler, adminReq(http.MethodPost, "/admin/access", `{"requester_id":"`+a.AdminID+`"}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	var grant struct {
		LoginURL string `json:"login_url"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grant))
	u, err := url.Parse(grant.LoginURL)
	require.NoError(t, err)

	login := httptest.NewRequest(http.MethodPost, u.Path, strings.NewReader(`{"identifier":"nope"}`))
	login.Header.Set("Content-Type", "application/json")
	rr = serve(a.Handler, login)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"success":false}`, rr.Body.String())
	require.Empty(t, rr.Result().Cookies())
}

func TestApp_Healthz(t *testing.T) {
	_, srv := newAuthority(t)
	a := newApp(t, srv.URL)

	rr := serve(a.Handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"cache":"up"`)
}

type mailbox struct {
	mu   sync.Mutex
	msgs []email.Message
}

func (m *mailbox) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func TestApp_EmailNotify(t *testing.T) {
	_, srv := newAuthority(t)
	cfg := configtest.New(t, func(s *config.Settings) {
		s.Vendor.Website = srv.URL + "/vendor"
		s.Vendor.PublicKeyPath = "public_key"
		s.Remote.APIURL = srv.URL + "/api/"
		s.Server.AdminAPIKey = "admin-key"
		s.Bootstrap.AdminUsername = "siteadmin"
		s.Notify.SMTP.Host = "smtp.site.test"
		s.Notify.SMTP.From = "noreply@site.test"
		s.Notify.SMTP.To = []string{"ops@site.test"}
	})
	box := &mailbox{}
	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), cfg, Options{Registerer: reg, Gatherer: reg, Mailer: box})
	require.NoError(t, err)

	rr := serve(a.Handler, adminReq(http.MethodPost, "/admin/access", `{"requester_id":"`+a.AdminID+`"}`))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = serve(a.Handler, adminReq(http.MethodDelete, "/admin/access/all", ""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Close vacía la cola del notifier.
	a.Close()

	box.mu.Lock()
	defer box.mu.Unlock()
	require.Len(t, box.msgs, 2)
	require.Equal(t, "[Acme] Support access granted", box.msgs[0].Subject)
	require.Equal(t, "[Acme] Support access revoked", box.msgs[1].Subject)
	require.Equal(t, []string{"ops@site.test"}, box.msgs[0].To)
}

func TestApp_SecretsNeverLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer logger.Replace(zap.New(core))()

	_, srv := newAuthority(t)
	a := newApp(t, srv.URL)

	rr := serve(a.Handler, adminReq(http.MethodPost, "/admin/access", `{"requester_id":"`+a.AdminID+`"}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	var grant struct {
		Identifier string `json:"identifier"`
		LoginURL   string `json:"login_url"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grant))
	u, err := url.Parse(grant.LoginURL)
	require.NoError(t, err)
	endpoint := strings.Trim(u.Path, "/")

	form := url.Values{"identifier": {grant.Identifier}}
	login := httptest.NewRequest(http.MethodPost, u.Path, strings.NewReader(form.Encode()))
	login.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, serve(a.Handler, login).Code)

	rr = serve(a.Handler, adminReq(http.MethodDelete, "/admin/access/"+grant.Identifier, ""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.NotZero(t, logs.Len())
	for _, e := range logs.All() {
		line := e.Message + " " + fmt.Sprint(e.ContextMap())
		require.NotContains(t, line, grant.Identifier, e.Message)
		require.NotContains(t, line, endpoint, e.Message)
		require.NotContains(t, line, "pub_acme_0123456789", e.Message)
	}
}
