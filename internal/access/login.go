package access

import (
	"context"

	"github.com/dropDatabas3/trustedlogin/internal/directory"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/metrics"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
	"github.com/dropDatabas3/trustedlogin/internal/security/lockdown"
)

func (s *service) Login(ctx context.Context, rawIdentifier string) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentAccess),
		logger.Op("Login"),
		logger.Namespace(s.ns()),
	)

	id := encryption.NormalizeIdentifier(rawIdentifier)
	p, err := s.dir.FindByAttribute(ctx, s.idKey(), id)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}
	log = log.With(logger.PrincipalID(p.ID))

	// El job programado puede no haber corrido todavía: la expiración se
	// chequea acá también.
	exp, err := s.expiresAt(ctx, p.ID)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	if !exp.IsZero() && !s.clk.Now().Before(exp) {
		log.Info("expired access presented, revoking", logger.ExpiresAt(exp))
		if _, err := s.revoke(ctx, id, TriggerExpired); err != nil {
			log.Warn("revoke on expired login incomplete", logger.Err(err))
		}
		return nil, apperrors.ErrExpired
	}

	sess, err := s.sessions.Start(ctx, *p)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	s.sink.Emit(ctx, events.Name(s.ns(), events.LoggedIn), events.Payload{
		"url":     s.cfg.SiteURL(),
		"action":  "logged_in",
		"user_id": p.ID,
	})
	log.Info("support user logged in")
	return &LoginResult{Principal: *p, Session: sess}, nil
}

func (s *service) ProcessLogin(ctx context.Context, req LoginRequest) (*LoginResult, bool) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentAccess),
		logger.Op("ProcessLogin"),
		logger.Namespace(s.ns()),
	)

	reject := func(reason string, err error) (*LoginResult, bool) {
		metrics.Logins.WithLabelValues(reason).Inc()
		log.Info("support login rejected", logger.String("reason", reason), logger.Err(err))
		return nil, false
	}

	if req.Identifier == "" {
		return reject("missing_identifier", nil)
	}
	ok, err := s.endpoint.Matches(ctx, req.Endpoint)
	if err != nil {
		return reject("endpoint_error", err)
	}
	if !ok {
		return reject("endpoint_mismatch", nil)
	}

	if err := s.checks.Verify(ctx, req.Identifier, lockdown.RequestInfo{
		UserAgent:  req.UserAgent,
		RemoteAddr: req.RemoteAddr,
	}); err != nil {
		return reject(apperrors.CodeOf(err), err)
	}

	res, err := s.Login(ctx, req.Identifier)
	if err != nil {
		return reject(apperrors.CodeOf(err), err)
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	return res, true
}

// principalByIdentifier resuelve un identificador normalizado.
func (s *service) principalByIdentifier(ctx context.Context, id string) (*directory.Principal, error) {
	return s.dir.FindByAttribute(ctx, s.idKey(), id)
}
