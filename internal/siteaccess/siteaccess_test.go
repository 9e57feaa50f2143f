package siteaccess

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustedlogin/internal/config"
	"github.com/dropDatabas3/trustedlogin/internal/config/configtest"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
	"github.com/dropDatabas3/trustedlogin/internal/store"
)

type staticKeys struct {
	pub    string
	err    error
	forgot int
}

func (k *staticKeys) GetEncryptionKey(context.Context) (string, error) { return k.pub, k.err }

func (k *staticKeys) Forget(context.Context) error {
	k.forgot++
	return nil
}

type recorded struct {
	method, path string
	body         any
}

type fakeRemote struct {
	calls []recorded
	resp  map[string]any
	err   error
}

func (f *fakeRemote) Do(_ context.Context, method, path string, body any, _ ...string) (map[string]any, error) {
	f.calls = append(f.calls, recorded{method, path, body})
	return f.resp, f.err
}

func rsaPair(t *testing.T) (string, string) {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, _ := x509.MarshalPKIXPublicKey(&k.PublicKey)
	pub := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	priv := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}))
	return pub, priv
}

func newService(t *testing.T, rc *fakeRemote, mutate ...func(*config.Settings)) (*Service, string, *store.Namespaced) {
	pub, priv := rsaPair(t)
	cfg := configtest.New(t, mutate...)
	opts := store.WithNamespace(cfg.Namespace(), store.NewMemory())
	return New(cfg, &staticKeys{pub: pub}, rc, opts), priv, opts
}

func TestBuildEnvelope_EncryptsSensitiveFields(t *testing.T) {
	s, priv, _ := newService(t, &fakeRemote{})
	exp := time.Unix(1_700_003_600, 0)

	env, err := s.BuildEnvelope(context.Background(), "secret-1", "raw-identifier", "TL|abc", Meta{UserID: "u1", ExpiresAt: exp})
	require.NoError(t, err)

	require.Equal(t, "secret-1", env.SecretID)
	require.Equal(t, "TL|abc", env.AccessKey)
	require.Equal(t, "pub_acme_0123456789", env.PublicKey)
	require.Equal(t, "u1", env.UserID)
	require.Equal(t, exp.Unix(), env.ExpiresAt)
	require.NotEmpty(t, env.Version)

	id, err := encryption.Decrypt(env.Identifier, priv)
	require.NoError(t, err)
	require.Equal(t, "raw-identifier", id)
	site, err := encryption.Decrypt(env.SiteURL, priv)
	require.NoError(t, err)
	require.Equal(t, "https://site.test", site)
}

func TestBuildEnvelope_RejectsEmptyArgs(t *testing.T) {
	s, _, _ := newService(t, &fakeRemote{})
	_, err := s.BuildEnvelope(context.Background(), "", "id", "", Meta{})
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	require.Contains(t, apperrors.FromError(err).Detail, "secret_id")
	require.Contains(t, apperrors.FromError(err).Detail, "access_key")
}

func TestBuildEnvelope_PropagatesKeyError(t *testing.T) {
	cfg := configtest.New(t)
	opts := store.WithNamespace(cfg.Namespace(), store.NewMemory())
	boom := errors.New("key fetch failed")
	s := New(cfg, &staticKeys{err: boom}, &fakeRemote{}, opts)
	_, err := s.BuildEnvelope(context.Background(), "a", "b", "c", Meta{})
	require.ErrorIs(t, err, boom)
}

func TestBuildEnvelope_InvalidKeyIsForgotten(t *testing.T) {
	cfg := configtest.New(t)
	opts := store.WithNamespace(cfg.Namespace(), store.NewMemory())
	keys := &staticKeys{pub: "-----BEGIN PUBLIC KEY-----\nbm9wZQ==\n-----END PUBLIC KEY-----\n"}
	s := New(cfg, keys, &fakeRemote{}, opts)

	_, err := s.BuildEnvelope(context.Background(), "a", "b", "c", Meta{})
	require.ErrorIs(t, err, encryption.ErrInvalidKey)
	require.Equal(t, 1, keys.forgot)
}

func TestCreateRemoteSite_RequiresSuccess(t *testing.T) {
	rc := &fakeRemote{resp: map[string]any{"success": true}}
	s, _, _ := newService(t, rc)
	require.NoError(t, s.CreateRemoteSite(context.Background(), "secret", "id", Meta{}))
	require.Len(t, rc.calls, 1)
	require.Equal(t, "POST", rc.calls[0].method)
	require.Equal(t, "sites", rc.calls[0].path)

	rc.resp = map[string]any{"success": false}
	err := s.CreateRemoteSite(context.Background(), "secret", "id", Meta{})
	require.ErrorIs(t, err, apperrors.ErrSyncFailed)

	rc.resp, rc.err = nil, apperrors.ErrUnavailable
	err = s.CreateRemoteSite(context.Background(), "secret", "id", Meta{})
	require.ErrorIs(t, err, apperrors.ErrSyncFailed)
	require.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestRevokeRemoteSite_SkippedWithoutSSL(t *testing.T) {
	rc := &fakeRemote{resp: map[string]any{"success": true}}
	s, _, _ := newService(t, rc, func(st *config.Settings) { st.Site.URL = "http://insecure.test" })
	require.NoError(t, s.RevokeRemoteSite(context.Background(), "endpoint"))
	require.Empty(t, rc.calls)
}

func TestRevokeRemoteSite_DeletesAndClearsAccessKey(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{resp: map[string]any{"success": true}}
	s, _, opts := newService(t, rc)

	_, err := s.ShareableAccessKey(ctx)
	require.NoError(t, err)

	require.NoError(t, s.RevokeRemoteSite(ctx, "endpointhash"))
	require.Equal(t, "DELETE", rc.calls[0].method)
	require.Equal(t, "sites/endpointhash", rc.calls[0].path)
	require.Equal(t, map[string]any{"publicKey": "pub_acme_0123456789"}, rc.calls[0].body)

	_, err = opts.Get(ctx, store.OptSharedAccessKey)
	require.True(t, store.IsNotFound(err))
}

func TestRevokeRemoteSite_NoSSLRequirement(t *testing.T) {
	rc := &fakeRemote{resp: map[string]any{"success": true}}
	s, _, _ := newService(t, rc, func(st *config.Settings) {
		st.Site.URL = "http://insecure.test"
		st.RequireSSL = configtest.Bool(false)
	})
	require.NoError(t, s.RevokeRemoteSite(context.Background(), "e"))
	require.Len(t, rc.calls, 1)
}

func TestShareableAccessKey_DeterministicAndCached(t *testing.T) {
	ctx := context.Background()
	s, _, opts := newService(t, &fakeRemote{})

	k1, err := s.ShareableAccessKey(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(k1, "TL|"))
	require.Equal(t, "TL|"+encryption.Hash("https://site.test"+"pub_acme_0123456789"), k1)

	cached, _ := opts.Get(ctx, store.OptSharedAccessKey)
	require.Equal(t, k1, cached)

	k2, _ := s.ShareableAccessKey(ctx)
	require.Equal(t, k1, k2)
}

func TestAccessKey_PrefersLicense(t *testing.T) {
	s, _, _ := newService(t, &fakeRemote{}, func(st *config.Settings) { st.Auth.LicenseKey = "LIC-1" })
	k, err := s.AccessKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "LIC-1", k)
}
