// Package siteaccess arma el envelope cifrado que describe un grant y lo
// sincroniza con la autoridad remota (alta y baja del sitio).
package siteaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/config"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/remote"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
	"github.com/dropDatabas3/trustedlogin/internal/store"
)

// KeyProvider resuelve la public key del vendor. Forget descarta la cacheada.
type KeyProvider interface {
	GetEncryptionKey(ctx context.Context) (string, error)
	Forget(ctx context.Context) error
}

// Remote es la parte del cliente remoto que se usa acá.
type Remote interface {
	Do(ctx context.Context, method, path string, body any, requiredKeys ...string) (map[string]any, error)
}

// Envelope es lo que recibe la autoridad remota al crear un sitio. Identifier y
// SiteURL van cifrados con la public key del vendor; el resto es opaco o público.
type Envelope struct {
	SecretID   string `json:"secretId"`
	Identifier string `json:"identifier"`
	SiteURL    string `json:"siteUrl"`
	PublicKey  string `json:"publicKey"`
	AccessKey  string `json:"accessKey"`
	UserID     string `json:"userId"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	Version    string `json:"version"`
}

// Meta datos no secretos del grant que viajan en el envelope.
type Meta struct {
	UserID    string
	ExpiresAt time.Time
}

// Service implementa las operaciones de sitio.
type Service struct {
	cfg     *config.Config
	keys    KeyProvider
	remote  Remote
	options *store.Namespaced
}

// New crea el servicio.
func New(cfg *config.Config, keys KeyProvider, rc Remote, options *store.Namespaced) *Service {
	return &Service{cfg: cfg, keys: keys, remote: rc, options: options}
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("siteaccess"),
		logger.Op(op),
		logger.Namespace(s.cfg.Namespace()),
	)
}

// BuildEnvelope cifra identifier y la URL del sitio. Argumentos vacíos se
// rechazan con ErrInvalidArgument.
func (s *Service) BuildEnvelope(ctx context.Context, secretID, identifier, accessKey string, meta Meta) (*Envelope, error) {
	var missing []string
	if strings.TrimSpace(secretID) == "" {
		missing = append(missing, "secret_id")
	}
	if strings.TrimSpace(identifier) == "" {
		missing = append(missing, "identifier")
	}
	if strings.TrimSpace(accessKey) == "" {
		missing = append(missing, "access_key")
	}
	if len(missing) > 0 {
		return nil, apperrors.ErrInvalidArgument.WithDetail(strings.Join(missing, ", "))
	}

	pub, err := s.keys.GetEncryptionKey(ctx)
	if err != nil {
		return nil, err
	}
	encID, err := encryption.Encrypt(identifier, pub)
	if err != nil {
		// una clave cacheada inservible (rotación del vendor) se vuelve a pedir
		// en el próximo grant
		if errors.Is(err, encryption.ErrInvalidKey) {
			if ferr := s.keys.Forget(ctx); ferr != nil {
				s.log(ctx, "BuildEnvelope").Warn("cached public key not cleared", logger.Err(ferr))
			} else {
				s.log(ctx, "BuildEnvelope").Warn("cached public key unusable, cleared")
			}
		}
		return nil, fmt.Errorf("siteaccess: encrypt identifier: %w", err)
	}
	encSite, err := encryption.Encrypt(s.cfg.SiteURL(), pub)
	if err != nil {
		return nil, fmt.Errorf("siteaccess: encrypt site url: %w", err)
	}

	env := &Envelope{
		SecretID:   secretID,
		Identifier: encID,
		SiteURL:    encSite,
		PublicKey:  s.cfg.APIKey(),
		AccessKey:  accessKey,
		UserID:     meta.UserID,
		Version:    remote.Version,
	}
	if !meta.ExpiresAt.IsZero() {
		env.ExpiresAt = meta.ExpiresAt.Unix()
	}
	return env, nil
}

// CreateRemoteSite envía el envelope. La respuesta debe traer success:true.
func (s *Service) CreateRemoteSite(ctx context.Context, secretID, identifier string, meta Meta) error {
	log := s.log(ctx, "CreateRemoteSite")

	accessKey, err := s.AccessKey(ctx)
	if err != nil {
		return err
	}
	env, err := s.BuildEnvelope(ctx, secretID, identifier, accessKey, meta)
	if err != nil {
		log.Warn("envelope build failed", logger.Err(err))
		return err
	}

	out, err := s.remote.Do(ctx, "POST", "sites", env)
	if err != nil {
		log.Warn("site create failed", logger.Err(err))
		return apperrors.ErrSyncFailed.WithCause(err)
	}
	if ok, _ := out["success"].(bool); !ok {
		log.Warn("site create not acknowledged")
		return apperrors.ErrSyncFailed.WithDetail("response without success")
	}
	log.Info("site synced")
	return nil
}

// SSLRequirementMet reporta si se puede hablar con la autoridad remota.
func (s *Service) SSLRequirementMet() bool {
	if !s.cfg.RequireSSL() {
		return true
	}
	return strings.HasPrefix(strings.ToLower(s.cfg.SiteURL()), "https://")
}

// RevokeRemoteSite da de baja el registro remoto. Si el requisito de SSL no se
// cumple no hay llamada de red y retorna nil.
func (s *Service) RevokeRemoteSite(ctx context.Context, identifier string) error {
	log := s.log(ctx, "RevokeRemoteSite")
	if !s.SSLRequirementMet() {
		log.Info("ssl requirement not met, remote revoke skipped")
		return nil
	}
	if strings.TrimSpace(identifier) == "" {
		return apperrors.ErrInvalidArgument.WithDetail("identifier")
	}

	_, err := s.remote.Do(ctx, "DELETE", "sites/"+identifier, map[string]any{"publicKey": s.cfg.APIKey()})
	if err != nil {
		log.Warn("site revoke failed", logger.Endpoint(identifier), logger.Err(err))
		return err
	}
	if err := s.options.Delete(ctx, store.OptSharedAccessKey); err != nil {
		log.Warn("shared access key not cleared", logger.Err(err))
	}
	log.Info("site revoked remotely")
	return nil
}

// ShareableAccessKey es una credencial permanente derivada de la URL del sitio
// y la API key pública. Cualquiera que conozca ambas puede calcularla: es un
// secreto más débil que una license key, aceptado por usabilidad.
func (s *Service) ShareableAccessKey(ctx context.Context) (string, error) {
	if v, err := s.options.Get(ctx, store.OptSharedAccessKey); err == nil && v != "" {
		return v, nil
	} else if err != nil && !store.IsNotFound(err) {
		return "", err
	}
	key := s.cfg.AccessKeyPrefix() + encryption.Hash(s.cfg.SiteURL()+s.cfg.APIKey())
	if err := s.options.Set(ctx, store.OptSharedAccessKey, key); err != nil {
		return "", err
	}
	return key, nil
}

// AccessKey es la license key si hay una configurada; si no, la compartible.
func (s *Service) AccessKey(ctx context.Context) (string, error) {
	if lk := s.cfg.LicenseKey(); lk != "" {
		return lk, nil
	}
	return s.ShareableAccessKey(ctx)
}
