package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/metrics"
	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Dispatcher posts run summaries to every matching subscription. Delivery is
// best-effort: a failing endpoint is logged and skipped, never retried, and
// never affects the job that triggered it.
type Dispatcher struct {
	registry *Registry
	client   *http.Client
	logger   *zap.Logger
}

// NewDispatcher constructs a dispatcher with the given per-request timeout.
func NewDispatcher(registry *Registry, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Notify delivers the summary to each subscription matching its event.
func (d *Dispatcher) Notify(ctx context.Context, summary scraper.RunSummary) error {
	subs, err := d.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("list webhook subscriptions: %w", err)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	for _, sub := range subs {
		if !subscribedTo(sub, summary.Event) {
			continue
		}
		if err := d.deliver(ctx, sub, payload); err != nil {
			metrics.ObserveWebhookDelivery("failure")
			d.logger.Warn("webhook delivery failed",
				zap.String("webhook_id", sub.ID),
				zap.String("url", sub.URL),
				zap.String("event", summary.Event),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveWebhookDelivery("success")
		d.logger.Debug("webhook delivered",
			zap.String("webhook_id", sub.ID),
			zap.String("event", summary.Event),
		)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub scraper.WebhookSubscription, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post payload: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
