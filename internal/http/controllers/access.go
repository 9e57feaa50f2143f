package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/trustedlogin/internal/access"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// AccessKeyProvider expone la access key que el sitio comparte con el vendor.
type AccessKeyProvider interface {
	AccessKey(ctx context.Context) (string, error)
}

// AccessController maneja /admin/access*.
type AccessController struct {
	svc  access.Service
	keys AccessKeyProvider
}

// NewAccessController crea el controller.
func NewAccessController(svc access.Service, keys AccessKeyProvider) *AccessController {
	return &AccessController{svc: svc, keys: keys}
}

type grantRequest struct {
	RequesterID string `json:"requester_id"`
}

type grantResponse struct {
	PrincipalID string     `json:"principal_id"`
	Identifier  string     `json:"identifier"`
	SecretID    string     `json:"secret_id"`
	LoginURL    string     `json:"login_url"`
	AccessKey   string     `json:"access_key,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	SyncError   string     `json:"sync_error,omitempty"`
}

type grantView struct {
	PrincipalID string     `json:"principal_id"`
	Username    string     `json:"username"`
	CreatedBy   string     `json:"created_by,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// Grant maneja POST /admin/access.
func (c *AccessController) Grant(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("AccessController.Grant"))

	var req grantRequest
	if err := readStrictJSON(w, r, &req); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	req.RequesterID = strings.TrimSpace(req.RequesterID)
	if req.RequesterID == "" {
		apperrors.WriteError(w, apperrors.ErrInvalidArgument.WithDetail("requester_id is required"))
		return
	}

	res, err := c.svc.Grant(r.Context(), req.RequesterID)
	if err != nil {
		log.Warn("grant failed", logger.Err(err))
		apperrors.WriteError(w, err)
		return
	}

	out := grantResponse{
		PrincipalID: res.PrincipalID,
		Identifier:  res.Identifier,
		SecretID:    res.SecretID,
		LoginURL:    res.LoginURL,
		AccessKey:   res.AccessKey,
		ExpiresAt:   timePtr(res.ExpiresAt),
	}
	if res.SyncErr != nil {
		out.SyncError = apperrors.CodeOf(res.SyncErr)
	}
	writeJSON(w, http.StatusCreated, out)
}

// Revoke maneja DELETE /admin/access/{identifier}. "all" revoca todo el namespace.
func (c *AccessController) Revoke(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "identifier"))
	if id == "" {
		apperrors.WriteError(w, apperrors.ErrInvalidArgument.WithDetail("identifier is required"))
		return
	}

	revoked, err := c.svc.Revoke(r.Context(), id)
	if err != nil {
		logger.From(r.Context()).Warn("revoke failed",
			logger.Layer("controller"), logger.Op("AccessController.Revoke"), logger.Err(err))
		apperrors.WriteError(w, err)
		return
	}
	if !revoked {
		apperrors.WriteError(w, apperrors.ErrNotFound.WithDetail("nothing to revoke"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// List maneja GET /admin/access.
func (c *AccessController) List(w http.ResponseWriter, r *http.Request) {
	grants, err := c.svc.List(r.Context())
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	out := make([]grantView, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantView{
			PrincipalID: g.PrincipalID,
			Username:    g.Username,
			CreatedBy:   g.CreatedBy,
			ExpiresAt:   timePtr(g.ExpiresAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

// AccessKey maneja GET /admin/access-key.
func (c *AccessController) AccessKey(w http.ResponseWriter, r *http.Request) {
	key, err := c.keys.AccessKey(r.Context())
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_key": key})
}
