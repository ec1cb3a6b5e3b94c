package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wastewise/disposal-assistant/internal/bootstrap"
	"github.com/wastewise/disposal-assistant/internal/config"
	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		app.Logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker_subscribed", "subject", cfg.NATSTurnSubject)
	err = app.Queue.SubscribeTurnCompleted(ctx, func(handlerCtx context.Context, record domain.TurnRecord) error {
		start := time.Now()
		app.Metrics.StartRecord()
		app.Metrics.ObserveQueueLag("worker", start.Sub(record.CompletedAt))

		recordCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()

		recordErr := app.Audit.Record(recordCtx, record)
		app.Metrics.FinishRecord("worker", time.Since(start), recordErr)
		return recordErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
