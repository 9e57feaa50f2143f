// Package scheduler implementa jobs diferidos "una sola vez" (at-most-once)
// identificados por (jobKey, args). Se usa para el revoke programado al
// vencer un acceso.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

// Scheduler es el colaborador que usa el ciclo de vida del acceso.
type Scheduler interface {
	// ScheduleOnce programa jobKey(args) para at. Retorna false si ya hay un job
	// pendiente con la misma clave y args.
	ScheduleOnce(at time.Time, jobKey string, args ...string) bool
	// Cancel quita el job pendiente. Retorna false si no había ninguno.
	Cancel(jobKey string, args ...string) bool
}

// Handler ejecuta un job. El error sólo se loguea.
type Handler func(ctx context.Context, args []string) error

type job struct {
	id    string
	key   string
	args  []string
	at    time.Time
	timer clock.Timer
}

// InProcess ejecuta los jobs en el proceso actual usando clock.AfterFunc. Los
// jobs no sobreviven a un reinicio.
type InProcess struct {
	clk clock.Clock

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]*job
	closed   bool
}

var _ Scheduler = (*InProcess)(nil)

// New crea un scheduler en proceso.
func New(clk clock.Clock) *InProcess {
	if clk == nil {
		clk = clock.Real()
	}
	return &InProcess{
		clk:      clk,
		handlers: map[string]Handler{},
		pending:  map[string]*job{},
	}
}

// Register asocia un handler a jobKey. Reemplaza uno anterior.
func (s *InProcess) Register(jobKey string, h Handler) {
	s.mu.Lock()
	s.handlers[jobKey] = h
	s.mu.Unlock()
}

func slot(jobKey string, args []string) string {
	return jobKey + "\x00" + strings.Join(args, "\x00")
}

func (s *InProcess) ScheduleOnce(at time.Time, jobKey string, args ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	k := slot(jobKey, args)
	if _, dup := s.pending[k]; dup {
		return false
	}
	j := &job{id: uuid.NewString(), key: jobKey, args: append([]string(nil), args...), at: at}
	s.pending[k] = j

	// at en el pasado: se dispara aparte para no correr el handler con el lock tomado.
	d := at.Sub(s.clk.Now())
	if d <= 0 {
		go s.fire(k, j)
		return true
	}
	j.timer = s.clk.AfterFunc(d, func() { s.fire(k, j) })

	logger.L().Debug("job scheduled",
		logger.Component("scheduler"),
		zap.String("job_id", j.id),
		zap.String("job_key", jobKey),
		zap.Time("at", at),
	)
	return true
}

func (s *InProcess) Cancel(jobKey string, args ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := slot(jobKey, args)
	j, ok := s.pending[k]
	if !ok {
		return false
	}
	delete(s.pending, k)
	if j.timer != nil {
		j.timer.Stop()
	}
	return true
}

// fire quita el job de pendientes antes de ejecutarlo: un job nunca corre dos veces.
func (s *InProcess) fire(k string, j *job) {
	s.mu.Lock()
	cur, ok := s.pending[k]
	if !ok || cur != j {
		s.mu.Unlock()
		return
	}
	delete(s.pending, k)
	h := s.handlers[j.key]
	s.mu.Unlock()

	log := logger.L().With(logger.Component("scheduler"), zap.String("job_id", j.id), zap.String("job_key", j.key))
	if h == nil {
		log.Warn("job fired without handler")
		return
	}
	if err := h(logger.ToContext(context.Background(), log), j.args); err != nil {
		log.Error("job failed", logger.Err(err))
		return
	}
	log.Debug("job done")
}

// Next devuelve cuándo corre el job pendiente, si existe.
func (s *InProcess) Next(jobKey string, args ...string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.pending[slot(jobKey, args)]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

// Len devuelve la cantidad de jobs pendientes.
func (s *InProcess) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancela todos los jobs pendientes y rechaza nuevos.
func (s *InProcess) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for k, j := range s.pending {
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(s.pending, k)
	}
}
