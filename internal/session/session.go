// Package session adapta el mecanismo de sesión del host: tras un login de
// soporte exitoso se emite un JWT HS256 que viaja en una cookie HttpOnly.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/directory"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

const issuer = "trustedlogin"

var ErrInvalidSession = errors.New("session: invalid")

// Session es una sesión emitida.
type Session struct {
	ID          string
	Token       string
	PrincipalID string
	ExpiresAt   time.Time
}

// Claims son las claims validadas de una sesión.
type Claims struct {
	jwtv5.RegisteredClaims
	Namespace string `json:"ns"`
	Role      string `json:"role,omitempty"`
}

// Options configura el Manager.
type Options struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
	Namespace  string
	Clock      clock.Clock
}

// Manager emite y valida sesiones.
type Manager struct {
	opts Options
}

// NewManager crea el manager. Secret debe tener al menos 32 bytes.
func NewManager(o Options) (*Manager, error) {
	if len(o.Secret) < 32 {
		return nil, errors.New("session: secret must be at least 32 bytes")
	}
	if o.TTL <= 0 {
		o.TTL = 2 * time.Hour
	}
	if o.CookieName == "" {
		o.CookieName = "tl_session"
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	return &Manager{opts: o}, nil
}

// Start autentica p en una nueva sesión.
func (m *Manager) Start(ctx context.Context, p directory.Principal) (*Session, error) {
	now := m.opts.Clock.Now().UTC()
	exp := now.Add(m.opts.TTL)
	id := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   p.ID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
		Namespace: m.opts.Namespace,
		Role:      p.Role,
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(m.opts.Secret)
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Debug("session started",
		logger.Component("session"),
		logger.PrincipalID(p.ID),
		logger.ExpiresAt(exp),
	)
	return &Session{ID: id, Token: signed, PrincipalID: p.ID, ExpiresAt: exp}, nil
}

// Parse valida firma, issuer, namespace y vigencia.
func (m *Manager) Parse(token string) (*Claims, error) {
	var c Claims
	tok, err := jwtv5.ParseWithClaims(token, &c, func(*jwtv5.Token) (any, error) {
		return m.opts.Secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithTimeFunc(m.opts.Clock.Now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidSession
	}
	if c.Namespace != m.opts.Namespace {
		return nil, ErrInvalidSession
	}
	return &c, nil
}

// Cookie construye la cookie de sesión.
func (m *Manager) Cookie(s *Session) *http.Cookie {
	ttl := s.ExpiresAt.Sub(m.opts.Clock.Now())
	if ttl < 0 {
		ttl = 0
	}
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(ttl.Seconds()),
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// DeletionCookie borra la cookie del browser.
func (m *Manager) DeletionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieName devuelve el nombre configurado.
func (m *Manager) CookieName() string { return m.opts.CookieName }
