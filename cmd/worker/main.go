package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sales_crm_backend/internal/scheduler"
	"sales_crm_backend/internal/webhook"
	"sales_crm_backend/platform/config"
	"sales_crm_backend/platform/db"
	"sales_crm_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting delivery worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	configs := webhook.NewConfigStore(pool)
	deliverer := webhook.NewDeliverer(cfg.GetWebhookTimeout(), cfg.GetWebhookMaxAttempts(), log)

	worker, err := scheduler.NewWorker(cfg, configs, deliverer, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("worker stopped", "error", err)
	}
	log.Info("delivery worker shut down")
}
