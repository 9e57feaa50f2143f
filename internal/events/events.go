// Package events publica los eventos del ciclo de vida del acceso para
// suscriptores externos. Emitir nunca falla para el caller.
package events

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// Sufijos de evento; el nombre completo es trustedlogin/{ns}/{sufijo}.
const (
	AccessCreated = "access/created"
	AccessRevoked = "access/revoked"
	LoggedIn      = "logged_in"
	LockdownAfter = "lockdown/after"
)

// Name arma el nombre namespaceado de un evento.
func Name(ns, suffix string) string {
	return "trustedlogin/" + ns + "/" + suffix
}

// Suffix devuelve el sufijo de un nombre completo ("" si no es de trustedlogin).
func Suffix(name string) string {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 3 || parts[0] != "trustedlogin" {
		return ""
	}
	return parts[2]
}

// Payload es el cuerpo de un evento. Nunca contiene identificadores crudos.
type Payload map[string]any

// Sink recibe eventos.
type Sink interface {
	Emit(ctx context.Context, name string, payload Payload)
}

// Nop descarta todos los eventos.
type Nop struct{}

func (Nop) Emit(context.Context, string, Payload) {}

// LogSink escribe cada evento en el logger.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, name string, payload Payload) {
	logger.From(ctx).Info("event", logger.Component("events"), zap.String("event", name), zap.Any("payload", map[string]any(payload)))
}

// Multi reparte el evento a varios sinks en orden.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, name string, payload Payload) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, name, payload)
		}
	}
}

// Recorder guarda los eventos emitidos. Útil en tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

// Recorded es un evento capturado por Recorder.
type Recorded struct {
	Name    string
	Payload Payload
}

func (r *Recorder) Emit(_ context.Context, name string, payload Payload) {
	r.mu.Lock()
	r.Events = append(r.Events, Recorded{Name: name, Payload: payload})
	r.mu.Unlock()
}

// Names devuelve los nombres en orden de emisión.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Name)
	}
	return out
}
