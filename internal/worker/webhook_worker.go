package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/events"
	"github.com/spec-kit/incident-router/internal/observability"
)

const (
	defaultWebhookQueue   = 256
	defaultWebhookWorkers = 2
	webhookUserAgent      = "incident-router-webhook/1.0"
)

// WebhookWorkerDependencies wires the webhook worker.
type WebhookWorkerDependencies struct {
	URL         string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	QueueSize   int
	Workers     int
	// RetryBackoff is multiplied by the attempt number between attempts.
	RetryBackoff time.Duration
	Client       *http.Client
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// WebhookWorker posts domain events to one configured endpoint from a bounded
// queue. Enqueue never blocks the request path; a full queue drops the event.
type WebhookWorker struct {
	url         string
	secret      string
	maxAttempts int
	workers     int
	backoff     time.Duration
	client      *http.Client
	metrics     *observability.Metrics
	logger      *zap.Logger
	queue       chan events.Event
}

// NewWebhookWorker builds the worker. Call Run to start delivering.
func NewWebhookWorker(deps WebhookWorkerDependencies) *WebhookWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: deps.Timeout}
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = defaultWebhookQueue
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultWebhookWorkers
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := deps.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &WebhookWorker{
		url:         deps.URL,
		secret:      deps.Secret,
		maxAttempts: attempts,
		workers:     workers,
		backoff:     backoff,
		client:      client,
		metrics:     deps.Metrics,
		logger:      logger,
		queue:       make(chan events.Event, queueSize),
	}
}

// Enqueue schedules event for delivery and reports whether it was accepted.
func (w *WebhookWorker) Enqueue(event events.Event) bool {
	select {
	case w.queue <- event:
		return true
	default:
		w.metrics.RecordWebhookDelivery(observability.WebhookDropped)
		w.logger.Warn("webhook queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID))
		return false
	}
}

// Run delivers queued events until ctx is cancelled.
func (w *WebhookWorker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-w.queue:
					w.deliver(ctx, event)
				}
			}
		}()
	}
	w.logger.Info("webhook worker started", zap.String("url", w.url), zap.Int("workers", w.workers))
	wg.Wait()
	return nil
}

func (w *WebhookWorker) deliver(ctx context.Context, event events.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		w.metrics.RecordWebhookDelivery(observability.WebhookFailed)
		w.logger.Error("webhook payload encoding failed", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	var lastErr error
attempts:
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		retry, err := w.post(ctx, event, body)
		if err == nil {
			w.metrics.RecordWebhookDelivery(observability.WebhookDelivered)
			return
		}
		lastErr = err
		if !retry || attempt == w.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	w.metrics.RecordWebhookDelivery(observability.WebhookFailed)
	w.logger.Warn("webhook delivery failed",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Error(lastErr))
}

// post sends one attempt and reports whether a failure is worth retrying.
func (w *WebhookWorker) post(ctx context.Context, event events.Event, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set("X-Webhook-Event", string(event.Type))
	req.Header.Set("X-Webhook-Delivery", event.ID)
	if w.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
