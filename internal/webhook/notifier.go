package webhook

import (
	"context"
	"log/slog"

	"sales_crm_backend/platform/logger"
)

// Enqueuer hands a delivery to the background task queue. Implemented by
// the scheduler client.
type Enqueuer interface {
	EnqueueWebhookDelivery(ctx context.Context, event Event) error
}

// Notifier decides whether an event leaves the system. It consults the
// tenant's config and either drops the event silently or hands it off for
// delivery. Notify never blocks the caller on network I/O and never fails
// the mutation that produced the event.
type Notifier struct {
	configs   ConfigStore
	enqueuer  Enqueuer
	deliverer *Deliverer
	log       *logger.Logger
}

// NewNotifier creates a notifier. enqueuer may be nil, in which case
// delivery runs on an in-process goroutine (no-redis dev mode).
func NewNotifier(configs ConfigStore, enqueuer Enqueuer, deliverer *Deliverer, log *logger.Logger) *Notifier {
	return &Notifier{configs: configs, enqueuer: enqueuer, deliverer: deliverer, log: log}
}

// Notify offers an event to the tenant's webhook. Missing config, disabled
// config, and unsubscribed event types are silent no-ops.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	cfg, err := n.configs.GetConfig(ctx, event.TenantID)
	if err != nil {
		n.log.Error("webhook_config_lookup_failed",
			slog.String("tenant_id", event.TenantID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if cfg == nil || !cfg.Accepts(event.Type) {
		return
	}

	if n.enqueuer != nil {
		if err := n.enqueuer.EnqueueWebhookDelivery(ctx, event); err != nil {
			n.log.Error("webhook_enqueue_failed",
				slog.String("event", event.Type),
				slog.String("tenant_id", event.TenantID.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	// Inline dispatch. Detached from the request context so an early
	// response cannot cancel the delivery attempts.
	go func() {
		_ = n.deliverer.Deliver(context.WithoutCancel(ctx), *cfg, event)
	}()
}
