package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"sales_crm_backend/internal/webhook"
	"sales_crm_backend/platform/config"
	"sales_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes background tasks from redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	configs   webhook.ConfigStore
	deliverer *webhook.Deliverer
	log       *logger.Logger
}

// NewWorker builds the asynq server and registers task handlers.
func NewWorker(cfg config.SchedulerConfig, configs webhook.ConfigStore, deliverer *webhook.Deliverer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		configs:   configs,
		deliverer: deliverer,
		log:       log,
	}

	mux.HandleFunc(TaskWebhookDeliver, w.handleWebhookDeliver)

	return w, nil
}

// handleWebhookDeliver runs one delivery, retries included. It always
// returns nil: delivery failure is terminal for the event, not for the
// task queue.
func (w *Worker) handleWebhookDeliver(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWebhookDeliverPayload(task)
	if err != nil {
		w.log.Error("webhook_task_malformed", slog.String("error", err.Error()))
		return nil
	}
	event := payload.Event

	cfg, err := w.configs.GetConfig(ctx, event.TenantID)
	if err != nil {
		w.log.Error("webhook_config_lookup_failed",
			slog.String("tenant_id", event.TenantID.String()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if cfg == nil || !cfg.Accepts(event.Type) {
		// Config changed since enqueue; the event is dropped quietly.
		return nil
	}

	_ = w.deliverer.Deliver(ctx, *cfg, event)
	return nil
}

// Run serves tasks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", slog.String("error", err.Error()))
	}
}
