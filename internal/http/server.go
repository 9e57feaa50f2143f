// Package http levanta el servidor HTTP del servicio.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// shutdownTimeout es el tiempo que se espera a los requests en vuelo.
const shutdownTimeout = 10 * time.Second

// NewServer arma el http.Server. WriteTimeout supera el timeout de la
// autoridad remota: un grant puede bloquear hasta 45s en el sync.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve atiende en ln hasta que ctx se cancela y luego hace shutdown ordenado.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	log := logger.L().With(logger.Component("http"), logger.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("http server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start escucha en srv.Addr y delega en Serve.
func Start(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, srv, ln)
}
