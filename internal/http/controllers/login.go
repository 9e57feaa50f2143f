package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/trustedlogin/internal/access"
	"github.com/dropDatabas3/trustedlogin/internal/session"
)

// CookieIssuer arma y borra la cookie de sesión del host.
type CookieIssuer interface {
	Cookie(s *session.Session) *http.Cookie
	DeletionCookie() *http.Cookie
	CookieName() string
}

// LoginController maneja el login público POST /{endpoint}.
//
// La respuesta es siempre {"success": bool}: el motivo de un rechazo sólo
// queda en los logs.
type LoginController struct {
	svc     access.Service
	cookies CookieIssuer
}

// NewLoginController crea el controller.
func NewLoginController(svc access.Service, cookies CookieIssuer) *LoginController {
	return &LoginController{svc: svc, cookies: cookies}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
}

// Login maneja POST /{endpoint}.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	identifier := c.identifier(w, r)

	res, ok := c.svc.ProcessLogin(r.Context(), access.LoginRequest{
		Endpoint:   chi.URLParam(r, "endpoint"),
		Identifier: identifier,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	})
	if !ok {
		c.clearStale(w, r)
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"success": false})
		return
	}
	if c.cookies != nil && res.Session != nil {
		http.SetCookie(w, c.cookies.Cookie(res.Session))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// clearStale borra una cookie de sesión previa que el browser siga mandando.
func (c *LoginController) clearStale(w http.ResponseWriter, r *http.Request) {
	if c.cookies == nil {
		return
	}
	if _, err := r.Cookie(c.cookies.CookieName()); err == nil {
		http.SetCookie(w, c.cookies.DeletionCookie())
	}
}

// identifier lee el identificador del body JSON o del form. Un body inválido
// se trata como identificador ausente.
func (c *LoginController) identifier(w http.ResponseWriter, r *http.Request) string {
	if isJSON(r) {
		var req loginRequest
		if err := readStrictJSON(w, r, &req); err != nil {
			return ""
		}
		return strings.TrimSpace(req.Identifier)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return strings.TrimSpace(r.PostFormValue("identifier"))
}

// Reject responde un login frenado por rate limit con el mismo cuerpo que
// cualquier otro rechazo.
func (c *LoginController) Reject(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, map[string]bool{"success": false})
}
