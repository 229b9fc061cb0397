package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/shopkit-labs/shopkit/internal/config"
	"github.com/shopkit-labs/shopkit/internal/messaging"
	"github.com/shopkit-labs/shopkit/internal/orders"
	"github.com/shopkit-labs/shopkit/internal/telemetry"
	"github.com/shopkit-labs/shopkit/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "fulfillment-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.OrderTopic, cfg.GroupID)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewFulfillmentHandler(orders.NewRepository(db), logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting fulfillment worker", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderTopic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
