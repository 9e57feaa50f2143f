package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustedlogin/internal/access"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/session"
)

type fakeAccess struct {
	grantRes  *access.GrantResult
	grantErr  error
	requester string
	revoked   bool
	revokeErr error
	revokeArg string
	grants    []access.Grant
	loginReq  access.LoginRequest
	loginOK   bool
	loginRes  *access.LoginResult
}

func (f *fakeAccess) Grant(_ context.Context, requesterID string) (*access.GrantResult, error) {
	f.requester = requesterID
	return f.grantRes, f.grantErr
}
func (f *fakeAccess) Login(context.Context, string) (*access.LoginResult, error) { return nil, nil }
func (f *fakeAccess) Revoke(_ context.Context, id string) (bool, error) {
	f.revokeArg = id
	return f.revoked, f.revokeErr
}
func (f *fakeAccess) ProcessLogin(_ context.Context, req access.LoginRequest) (*access.LoginResult, bool) {
	f.loginReq = req
	return f.loginRes, f.loginOK
}
func (f *fakeAccess) HandleScheduledRevoke(context.Context, []string) error { return nil }
func (f *fakeAccess) List(context.Context) ([]access.Grant, error)         { return f.grants, nil }
func (f *fakeAccess) JobKey() string                                        { return "trustedlogin/acme/access/revoke" }
func (f *fakeAccess) RoleName() string                                      { return "acme-support" }

type staticKey string

func (k staticKey) AccessKey(context.Context) (string, error) { return string(k), nil }

type cookieJar struct{}

func (cookieJar) Cookie(s *session.Session) *http.Cookie {
	return &http.Cookie{Name: "tl_session", Value: s.Token}
}

func (cookieJar) DeletionCookie() *http.Cookie { return &http.Cookie{Name: "tl_session", MaxAge: -1} }

func (cookieJar) CookieName() string { return "tl_session" }

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func withParam(r *http.Request, key, val string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestGrant(t *testing.T) {
	exp := time.Unix(1_700_003_600, 0)
	f := &fakeAccess{grantRes: &access.GrantResult{
		PrincipalID: "p1",
		Identifier:  "raw",
		SecretID:    "sid",
		LoginURL:    "https://site.test/ep",
		AccessKey:   "TL|k",
		ExpiresAt:   exp,
		SyncErr:     apperrors.ErrSyncFailed,
	}}
	c := NewAccessController(f, staticKey("TL|k"))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/access", strings.NewReader(`{"requester_id":"admin-1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Grant(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "admin-1", f.requester)
	body := decode(t, rr)
	require.Equal(t, "raw", body["identifier"])
	require.Equal(t, "https://site.test/ep", body["login_url"])
	require.Equal(t, "sync_failed", body["sync_error"])
	require.Equal(t, exp.UTC().Format(time.RFC3339), body["expires_at"])
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestGrant_BadInput(t *testing.T) {
	c := NewAccessController(&fakeAccess{}, staticKey(""))

	for name, body := range map[string]string{
		"missing requester": `{}`,
		"unknown field":     `{"requester_id":"a","extra":1}`,
		"trailing data":     `{"requester_id":"a"} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c.Grant(rr, httptest.NewRequest(http.MethodPost, "/admin/access", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGrant_ServiceErrorRendersAppError(t *testing.T) {
	c := NewAccessController(&fakeAccess{grantErr: apperrors.ErrForbidden}, staticKey(""))
	rr := httptest.NewRecorder()
	c.Grant(rr, httptest.NewRequest(http.MethodPost, "/admin/access", strings.NewReader(`{"requester_id":"x"}`)))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decode(t, rr)["code"])
}

func TestRevoke(t *testing.T) {
	cases := []struct {
		name    string
		revoked bool
		err     error
		status  int
	}{
		{"revoked", true, nil, http.StatusOK},
		{"nothing", false, nil, http.StatusNotFound},
		{"partial", true, apperrors.ErrRevokePartial.WithCause(errors.New("remote down")), http.StatusMultiStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeAccess{revoked: tc.revoked, revokeErr: tc.err}
			c := NewAccessController(f, staticKey(""))
			rr := httptest.NewRecorder()
			req := withParam(httptest.NewRequest(http.MethodDelete, "/admin/access/all", nil), "identifier", "all")
			c.Revoke(rr, req)
			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, "all", f.revokeArg)
		})
	}
}

func TestListAndAccessKey(t *testing.T) {
	f := &fakeAccess{grants: []access.Grant{{PrincipalID: "p1", Username: "Acme Support", CreatedBy: "a1"}}}
	c := NewAccessController(f, staticKey("TL|abc"))

	rr := httptest.NewRecorder()
	c.List(rr, httptest.NewRequest(http.MethodGet, "/admin/access", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	grants := decode(t, rr)["grants"].([]any)
	require.Len(t, grants, 1)
	g := grants[0].(map[string]any)
	require.Equal(t, "p1", g["principal_id"])
	require.NotContains(t, g, "expires_at")

	rr = httptest.NewRecorder()
	c.AccessKey(rr, httptest.NewRequest(http.MethodGet, "/admin/access-key", nil))
	require.Equal(t, "TL|abc", decode(t, rr)["access_key"])
}

func TestLogin_Form(t *testing.T) {
	f := &fakeAccess{loginOK: true, loginRes: &access.LoginResult{Session: &session.Session{Token: "tok"}}}
	c := NewLoginController(f, cookieJar{})

	form := url.Values{"identifier": {" raw-id "}}
	req := httptest.NewRequest(http.MethodPost, "/ep", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "agent/1.0")
	req = withParam(req, "endpoint", "ep")

	rr := httptest.NewRecorder()
	c.Login(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, map[string]any{"success": true}, decode(t, rr))
	require.Equal(t, "raw-id", f.loginReq.Identifier)
	require.Equal(t, "ep", f.loginReq.Endpoint)
	require.Equal(t, "agent/1.0", f.loginReq.UserAgent)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "tok", cookies[0].Value)
}

func TestLogin_JSONRejected(t *testing.T) {
	f := &fakeAccess{loginOK: false}
	c := NewLoginController(f, cookieJar{})

	req := httptest.NewRequest(http.MethodPost, "/ep", strings.NewReader(`{"identifier":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	c.Login(rr, withParam(req, "endpoint", "ep"))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, map[string]any{"success": false}, decode(t, rr))
	require.Equal(t, "abc", f.loginReq.Identifier)
	require.Empty(t, rr.Result().Cookies())
}

func TestLogin_RejectedClearsStaleSession(t *testing.T) {
	f := &fakeAccess{loginOK: false}
	c := NewLoginController(f, cookieJar{})

	req := httptest.NewRequest(http.MethodPost, "/ep", strings.NewReader(`{"identifier":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "tl_session", Value: "old"})
	rr := httptest.NewRecorder()
	c.Login(rr, withParam(req, "endpoint", "ep"))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "tl_session", cookies[0].Name)
	require.Equal(t, -1, cookies[0].MaxAge)
}

func TestLogin_InvalidJSONIsMissingIdentifier(t *testing.T) {
	f := &fakeAccess{}
	c := NewLoginController(f, cookieJar{})
	req := httptest.NewRequest(http.MethodPost, "/ep", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	c.Login(rr, withParam(req, "endpoint", "ep"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, f.loginReq.Identifier)
}

func TestHealthz(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("no route") })

	rr := httptest.NewRecorder()
	NewHealthController("1.0.0", map[string]Pinger{"cache": up}).Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	require.Equal(t, "ready", body["status"])
	require.Equal(t, "1.0.0", body["version"])

	rr = httptest.NewRecorder()
	NewHealthController("1.0.0", map[string]Pinger{"cache": up, "store": down}).Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body = decode(t, rr)
	require.Equal(t, "unavailable", body["status"])
	require.Equal(t, map[string]any{"cache": "up", "store": "down"}, body["components"])
}
