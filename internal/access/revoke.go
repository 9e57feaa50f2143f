package access

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/directory"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/metrics"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
)

func (s *service) Revoke(ctx context.Context, identifier string) (bool, error) {
	trigger := TriggerManual
	if identifier == RevokeAll {
		trigger = TriggerAll
	}
	return s.revoke(ctx, identifier, trigger)
}

func (s *service) HandleScheduledRevoke(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	// nada que revocar es éxito; un revoke parcial ya quedó logueado
	if _, err := s.revoke(ctx, args[0], TriggerScheduled); err != nil && !errors.Is(err, apperrors.ErrRevokePartial) {
		return err
	}
	return nil
}

func (s *service) revoke(ctx context.Context, identifier, trigger string) (bool, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentAccess),
		logger.Op("Revoke"),
		logger.Namespace(s.ns()),
		logger.Trigger(trigger),
	)

	endpoint, n, err := s.revokeLocal(ctx, identifier)
	if err != nil {
		log.Error("local revoke failed", logger.Err(err))
		return false, err
	}
	if n == 0 {
		log.Debug("nothing to revoke")
		return false, nil
	}
	metrics.Revocations.WithLabelValues(trigger).Inc()

	s.sink.Emit(ctx, events.Name(s.ns(), events.AccessRevoked), events.Payload{
		"url":     s.cfg.SiteURL(),
		"action":  "revoked",
		"trigger": trigger,
	})

	// Notificación remota: fuera del lock, best-effort pero visible al caller.
	if endpoint == "" {
		log.Warn("no endpoint recorded, remote revoke skipped", zap.Int("revoked", n))
		return true, nil
	}
	if err := s.site.RevokeRemoteSite(ctx, endpoint); err != nil {
		log.Warn("access revoked locally, remote not notified", zap.Int("revoked", n), logger.Err(err))
		return true, apperrors.ErrRevokePartial.WithCause(err)
	}
	log.Info("support access revoked", zap.Int("revoked", n))
	return true, nil
}

// revokeLocal borra los principals y, si corresponde, el rol y el endpoint.
// Devuelve el endpoint leído antes del teardown y la cantidad revocada.
func (s *service) revokeLocal(ctx context.Context, identifier string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var targets []directory.Principal
	if identifier == RevokeAll {
		ps, err := s.dir.FindByRole(ctx, s.RoleName())
		if err != nil {
			return "", 0, apperrors.ErrInternal.WithCause(err)
		}
		targets = ps
	} else {
		p, err := s.principalByIdentifier(ctx, encryption.NormalizeIdentifier(identifier))
		if err != nil {
			return "", 0, apperrors.ErrInternal.WithCause(err)
		}
		if p != nil {
			targets = append(targets, *p)
		}
	}

	endpoint, err := s.endpoint.Get(ctx)
	if err != nil {
		return "", 0, apperrors.ErrInternal.WithCause(err)
	}

	revoked := 0
	for _, p := range targets {
		if stored := p.Attributes[s.idKey()]; stored != "" {
			s.sched.Cancel(s.JobKey(), stored)
		}
		reassignTo := ""
		if s.cfg.ReassignContent() {
			reassignTo = p.Attributes[s.createdByKey()]
		}
		ok, err := s.dir.DeletePrincipal(ctx, p.ID, reassignTo)
		if err != nil {
			return endpoint, revoked, apperrors.ErrInternal.WithCause(err)
		}
		if ok {
			revoked++
		}
	}

	remaining, err := s.dir.FindByRole(ctx, s.RoleName())
	if err != nil {
		return endpoint, revoked, apperrors.ErrInternal.WithCause(err)
	}
	if identifier == RevokeAll || len(remaining) == 0 {
		if err := s.dir.DeleteRole(ctx, s.RoleName()); err != nil {
			return endpoint, revoked, apperrors.ErrInternal.WithCause(err)
		}
		if err := s.endpoint.Delete(ctx); err != nil {
			return endpoint, revoked, apperrors.ErrInternal.WithCause(err)
		}
	}
	return endpoint, revoked, nil
}
