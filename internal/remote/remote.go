// Package remote es el cliente HTTP de la autoridad remota (trust authority):
// firma con bearer, serializa JSON y mapea códigos de respuesta a errores.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/config"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/metrics"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// Timeout fijo de toda llamada saliente. No hay reintentos.
const Timeout = 45 * time.Second

// Version viaja en el User-Agent y en el envelope.
const Version = "1.0.0"

// maxBody limita lo que se lee de una respuesta.
const maxBody = 1 << 20

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// URLOverride permite cambiar la URL base de la API por namespace. Recibe el
// namespace y la base configurada; devuelve la base a usar.
type URLOverride func(namespace, base string) string

// Response es la respuesta cruda de Send. StatusCode 0 significa que no se pudo
// determinar el status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client habla con la autoridad remota.
type Client struct {
	cfg      *config.Config
	http     *http.Client
	override URLOverride
}

// Option configura el Client.
type Option func(*Client)

// WithHTTPClient reemplaza el http.Client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithURLOverride instala el punto de extensión de URL base.
func WithURLOverride(f URLOverride) Option {
	return func(c *Client) { c.override = f }
}

// New crea el cliente. cfg ya fue validada por config.New.
func New(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: Timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BuildAPIURL concatena path a la base (sin normalizar dobles barras).
func (c *Client) BuildAPIURL(path string) string {
	base := c.cfg.APIURL()
	if c.override != nil {
		base = c.override(c.cfg.Namespace(), base)
	}
	return base + path
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Send ejecuta el request. Los métodos no soportados se rechazan antes de tocar
// la red. path puede ser relativo a la API o una URL absoluta; sólo los
// relativos llevan el header Authorization.
func (c *Client) Send(ctx context.Context, path string, body any, method string, headers map[string]string) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !allowedMethods[method] {
		return nil, apperrors.ErrInvalidMethod.WithDetail(method)
	}

	target := path
	if !isAbsolute(path) {
		target = c.BuildAPIURL(path)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("remote: encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TrustedLogin/"+Version)
	// la API key sólo viaja a la API; una URL absoluta (p.ej. el sitio del
	// vendor) no la recibe
	if !isAbsolute(path) {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey())
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log := logger.From(ctx).With(
		logger.Layer("remote"),
		logger.Method(method),
		logger.RemotePath(path),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequestDuration.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		// *url.Error incluye la URL completa
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		log.Warn("remote request failed", logger.Err(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	metrics.RemoteRequestDuration.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("remote read body failed", logger.Status(resp.StatusCode), logger.Err(err))
		return nil, err
	}
	log.Debug("remote request", logger.Status(resp.StatusCode), zap.Int("bytes", len(raw)))

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// HandleResponse mapea la respuesta a un mapa JSON o a un error tipado. Los
// códigos no mapeados se tratan como éxito si el body es JSON válido.
func HandleResponse(resp *Response, transportErr error, requiredKeys ...string) (map[string]any, error) {
	if transportErr != nil {
		return nil, transportErr
	}
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, apperrors.ErrMissingResponseBody
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, apperrors.ErrUnauthenticated.WithData(string(resp.Body))
	case http.StatusForbidden:
		return nil, apperrors.ErrInvalidToken.WithData(string(resp.Body))
	case http.StatusNotFound:
		return nil, apperrors.ErrNotFound.WithData(string(resp.Body))
	case http.StatusInternalServerError:
		return nil, apperrors.ErrUnavailable.WithData(string(resp.Body))
	case 0:
		return nil, apperrors.ErrInvalidResponse.WithDetail("unknown status code").WithData(string(resp.Body))
	}

	var out map[string]any
	if err := json.Unmarshal(resp.Body, &out); err != nil || len(out) == 0 {
		return nil, apperrors.ErrInvalidResponse.WithData(string(resp.Body))
	}

	for _, k := range requiredKeys {
		if _, ok := out[k]; !ok {
			return nil, apperrors.ErrMissingRequiredKey.WithDetail(k).WithData(out)
		}
	}
	return out, nil
}

// Do es Send + HandleResponse.
func (c *Client) Do(ctx context.Context, method, path string, body any, requiredKeys ...string) (map[string]any, error) {
	resp, err := c.Send(ctx, path, body, method, nil)
	return HandleResponse(resp, err, requiredKeys...)
}
