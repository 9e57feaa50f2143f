package email

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/events"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

const defaultQueueSize = 32

// NotifierConfig arma un Notifier.
type NotifierConfig struct {
	Sender         Sender
	To             []string
	Vendor         string
	SiteURL        string
	LockdownExpiry time.Duration
	Clock          clock.Clock
	QueueSize      int
}

// Notifier es un events.Sink que manda un email por cada acceso creado,
// revocado o lockdown. El envío corre en un worker propio: Emit nunca
// bloquea al caller y una cola llena descarta el email (con warning).
type Notifier struct {
	cfg   NotifierConfig
	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx context.Context
	msg Message
}

// NewNotifier arranca el worker. Sin Sender o sin destinatarios retorna nil.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Sender == nil || len(cfg.To) == 0 {
		return nil
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	n := &Notifier{cfg: cfg, queue: make(chan job, cfg.QueueSize)}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for j := range n.queue {
		if err := n.cfg.Sender.Send(j.ctx, j.msg); err != nil {
			logger.From(j.ctx).Warn("notification email failed",
				logger.Component("email.notifier"),
				logger.String("subject", j.msg.Subject),
				logger.Err(err),
			)
		}
	}
}

func (n *Notifier) Emit(ctx context.Context, name string, payload events.Payload) {
	if n == nil {
		return
	}
	log := logger.From(ctx).With(logger.Component("email.notifier"), logger.String("event", name))

	msg, ok, err := render(events.Suffix(name), n.vars(payload))
	if !ok {
		return
	}
	if err != nil {
		log.Warn("notification render failed", logger.Err(err))
		return
	}
	msg.To = append([]string(nil), n.cfg.To...)

	// El envío sobrevive al request que lo originó.
	j := job{ctx: logger.ToContext(context.Background(), logger.From(ctx)), msg: msg}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		log.Warn("notifier closed, email dropped")
		return
	}
	select {
	case n.queue <- j:
	default:
		log.Warn("notification queue full, email dropped")
	}
}

func (n *Notifier) vars(p events.Payload) Vars {
	now := n.cfg.Clock.Now().UTC()
	v := Vars{
		Vendor:  n.cfg.Vendor,
		SiteURL: n.cfg.SiteURL,
		When:    now.Format(time.RFC1123),
	}
	if s, ok := p["url"].(string); ok && s != "" {
		v.SiteURL = s
	}
	if s, ok := p["action"].(string); ok {
		v.Action = s
	}
	if s, ok := p["trigger"].(string); ok {
		v.Trigger = s
	}
	if s, ok := p["user_ip"].(string); ok {
		v.UserIP = s
	}
	if ts, ok := p["timestamp"].(int64); ok {
		now = time.Unix(ts, 0).UTC()
		v.When = now.Format(time.RFC1123)
	}
	v.Until = now.Add(n.cfg.LockdownExpiry).Format(time.RFC1123)
	return v
}

// Close deja de aceptar eventos y espera a que la cola se vacíe.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}
