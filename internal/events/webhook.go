package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
)

const webhookTimeout = 10 * time.Second

// WebhookSink envía por POST los eventos de creación y revocación a una URL.
// Los fallos se loguean y no se propagan.
type WebhookSink struct {
	URL  string
	HTTP *http.Client
}

// NewWebhook crea el sink. Con url vacía retorna nil (usar dentro de Multi).
func NewWebhook(url string) *WebhookSink {
	if url == "" {
		return nil
	}
	return &WebhookSink{URL: url, HTTP: &http.Client{Timeout: webhookTimeout}}
}

func (w *WebhookSink) Emit(ctx context.Context, name string, payload Payload) {
	if w == nil {
		return
	}
	switch Suffix(name) {
	case AccessCreated, AccessRevoked:
	default:
		return
	}

	log := logger.From(ctx).With(logger.Component("events.webhook"), logger.String("event", name))

	body := map[string]any{"event": name}
	for k, v := range payload {
		body[k] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		log.Warn("webhook encode failed", logger.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		log.Warn("webhook request failed", logger.Err(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.HTTP.Do(req)
	if err != nil {
		log.Warn("webhook post failed", logger.Err(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		log.Warn("webhook non-2xx", logger.Status(resp.StatusCode))
	}
}
