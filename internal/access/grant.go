package access

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/directory"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/metrics"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
	"github.com/dropDatabas3/trustedlogin/internal/siteaccess"
)

func (s *service) Grant(ctx context.Context, requesterID string) (*GrantResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentAccess),
		logger.Op("Grant"),
		logger.Namespace(s.ns()),
		logger.String("requester_id", requesterID),
	)

	ok, err := s.dir.HasCapability(ctx, requesterID, CapCreateUsers)
	if err != nil && !errors.Is(err, directory.ErrPrincipalNotFound) {
		log.Error("capability check failed", logger.Err(err))
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	if !ok {
		metrics.Grants.WithLabelValues("forbidden").Inc()
		log.Warn("grant denied: missing capability")
		return nil, apperrors.ErrForbidden
	}

	if err := s.cfg.Validate(); err != nil {
		metrics.Grants.WithLabelValues("config_invalid").Inc()
		log.Error("grant refused: invalid config", logger.Err(err))
		return nil, apperrors.ErrConfigInvalid.WithDetail(err.Error()).WithCause(err)
	}

	res, err := s.grantLocal(ctx, requesterID)
	if err != nil {
		metrics.Grants.WithLabelValues(apperrors.CodeOf(err)).Inc()
		log.Warn("grant failed", logger.Err(err))
		return nil, err
	}

	// La sincronización remota va fuera del lock y no revierte el grant local.
	if key, err := s.site.AccessKey(ctx); err == nil {
		res.AccessKey = key
	} else {
		log.Warn("access key unavailable", logger.Err(err))
	}
	res.SyncErr = s.site.CreateRemoteSite(ctx, res.SecretID, res.Identifier, siteaccess.Meta{
		UserID:    res.PrincipalID,
		ExpiresAt: res.ExpiresAt,
	})

	result := "ok"
	if res.SyncErr != nil {
		result = "sync_failed"
		log.Warn("grant created without remote sync", logger.Err(res.SyncErr))
	}
	metrics.Grants.WithLabelValues(result).Inc()

	s.sink.Emit(ctx, events.Name(s.ns(), events.AccessCreated), events.Payload{
		"url":     s.cfg.SiteURL(),
		"action":  "created",
		"user_id": res.PrincipalID,
	})

	log.Info("support access granted",
		logger.PrincipalID(res.PrincipalID),
		logger.Endpoint(res.Endpoint),
		logger.ExpiresAt(res.ExpiresAt),
		zap.Bool("synced", res.SyncErr == nil),
	)
	return res, nil
}

// grantLocal crea rol, principal, endpoint y job. Todo lo local va bajo el lock
// del namespace; ninguna llamada remota ocurre acá.
func (s *service) grantLocal(ctx context.Context, requesterID string) (*GrantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRole(ctx); err != nil {
		return nil, err
	}

	v := s.cfg.Vendor()
	username := s.supportUsername()
	if p, err := s.dir.FindByUsername(ctx, username); err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	} else if p != nil {
		return nil, apperrors.ErrAlreadyExists.WithDetail(username)
	}
	if p, err := s.dir.FindByEmail(ctx, v.Email); err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	} else if p != nil {
		return nil, apperrors.ErrEmailExists
	}

	raw, err := encryption.RandomHex(identifierBytes)
	if err != nil {
		return nil, err
	}

	id, err := s.dir.CreatePrincipal(ctx, directory.NewPrincipal{
		Username:    username,
		Email:       v.Email,
		DisplayName: v.DisplayName,
		Role:        s.RoleName(),
	})
	switch {
	case errors.Is(err, directory.ErrUsernameTaken):
		return nil, apperrors.ErrAlreadyExists.WithDetail(username)
	case errors.Is(err, directory.ErrEmailTaken):
		return nil, apperrors.ErrEmailExists
	case err != nil:
		return nil, apperrors.ErrSetupFailed.WithCause(err)
	}

	endpoint := encryption.Hash(s.cfg.SiteURL() + raw)
	if err := s.endpoint.Set(ctx, endpoint); err != nil {
		s.cleanupPrincipal(ctx, id, "")
		return nil, apperrors.ErrSetupFailed.WithCause(err)
	}
	secretID := encryption.Hash(endpoint + raw)
	stored := encryption.Hash(raw)

	res := &GrantResult{
		PrincipalID: id,
		Identifier:  raw,
		SecretID:    secretID,
		Endpoint:    endpoint,
		LoginURL:    s.loginURL(endpoint),
	}

	if err := s.dir.SetAttribute(ctx, id, s.idKey(), stored); err != nil {
		s.cleanupPrincipal(ctx, id, "")
		return nil, apperrors.ErrSetupFailed.WithCause(err)
	}
	if err := s.dir.SetAttribute(ctx, id, s.createdByKey(), requesterID); err != nil {
		s.cleanupPrincipal(ctx, id, "")
		return nil, apperrors.ErrSetupFailed.WithCause(err)
	}

	if decay := s.cfg.Decay(); decay > 0 {
		res.ExpiresAt = s.clk.Now().Add(decay).Truncate(time.Second)
		if !s.sched.ScheduleOnce(res.ExpiresAt, s.JobKey(), stored) {
			logger.From(ctx).Warn("revoke job already scheduled", logger.Component(componentAccess))
		}
		if err := s.dir.SetAttribute(ctx, id, s.expiresKey(), strconv.FormatInt(res.ExpiresAt.Unix(), 10)); err != nil {
			s.cleanupPrincipal(ctx, id, stored)
			return nil, apperrors.ErrSetupFailed.WithCause(err)
		}
	}

	// read-after-write: el identificador guardado tiene que resolver al principal
	p, err := s.dir.FindByAttribute(ctx, s.idKey(), stored)
	if err != nil || p == nil || p.ID != id {
		s.cleanupPrincipal(ctx, id, stored)
		return nil, apperrors.ErrSetupFailed.WithDetail("stored identifier did not round-trip")
	}
	return res, nil
}

// ensureRole crea {ns}-support si no existe. Las capabilities denegadas se
// quitan al final, así caps/add no puede reintroducirlas.
func (s *service) ensureRole(ctx context.Context) error {
	r, err := s.dir.GetRole(ctx, s.RoleName())
	if err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	if r != nil {
		return nil
	}

	extra := sortedKeys(s.cfg.CapsAdd())
	removed := append(sortedKeys(s.cfg.CapsRemove()), deniedCaps...)

	_, err = s.dir.CloneRole(ctx, s.RoleName(), s.supportUsername(), s.cfg.Role(), extra, removed)
	switch {
	case err == nil, errors.Is(err, directory.ErrRoleExists):
		return nil
	case errors.Is(err, directory.ErrRoleNotFound):
		return apperrors.ErrConfigInvalid.WithDetail("role: base role " + s.cfg.Role() + " does not exist")
	default:
		return apperrors.ErrSetupFailed.WithCause(err)
	}
}

// cleanupPrincipal deshace un grant a medias: job, principal, endpoint y, si no
// queda ningún principal de soporte, el rol.
func (s *service) cleanupPrincipal(ctx context.Context, id, stored string) {
	log := logger.From(ctx).With(logger.Component(componentAccess), logger.PrincipalID(id))
	if stored != "" {
		s.sched.Cancel(s.JobKey(), stored)
	}
	if _, err := s.dir.DeletePrincipal(ctx, id, ""); err != nil {
		log.Error("grant cleanup failed", logger.Err(err))
	}
	_ = s.endpoint.Delete(ctx)

	left, err := s.dir.FindByRole(ctx, s.RoleName())
	if err != nil || len(left) > 0 {
		return
	}
	if err := s.dir.DeleteRole(ctx, s.RoleName()); err != nil {
		log.Warn("grant cleanup: role not deleted", logger.Err(err))
	}
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
