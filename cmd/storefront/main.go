package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/shopkit-labs/shopkit/internal/api"
	"github.com/shopkit-labs/shopkit/internal/cart"
	"github.com/shopkit-labs/shopkit/internal/catalog"
	"github.com/shopkit-labs/shopkit/internal/checkout"
	"github.com/shopkit-labs/shopkit/internal/config"
	"github.com/shopkit-labs/shopkit/internal/messaging"
	"github.com/shopkit-labs/shopkit/internal/notify"
	"github.com/shopkit-labs/shopkit/internal/orders"
	"github.com/shopkit-labs/shopkit/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	listener, err := notify.NewListener(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to start change listener", "error", err)
		os.Exit(1)
	}
	defer func() { _ = listener.Close() }()

	listenerCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()
	go listener.Run(listenerCtx)

	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic)
		defer func() { _ = producer.Close() }()
	}

	cartRepo := cart.NewRepository(db)
	orderRepo := orders.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)

	resolver := cart.NewResolver(cartRepo, logger)
	mutator := cart.NewMutator(cartRepo, logger)
	projector := cart.NewProjector(cartRepo, listener, logger)
	projector.SetFetchTimeout(cfg.StoreTimeout)

	var orchestrator *checkout.Orchestrator
	if producer != nil {
		orchestrator = checkout.NewOrchestrator(orderRepo, cartRepo, producer, logger)
	} else {
		orchestrator = checkout.NewOrchestrator(orderRepo, cartRepo, nil, logger)
	}
	orchestrator.SetStepTimeout(cfg.StoreTimeout)

	handler := api.NewHandler(resolver, mutator, cartRepo, catalogRepo, orderRepo, orchestrator, projector, logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(handler.HandleListProducts))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(handler.HandleGetProduct))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(handler.HandleGetCart))
	mux.HandleFunc("GET /cart/stream", telemetry.WithHTTPRoute(handler.HandleStreamCart))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(handler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{id}", telemetry.WithHTTPRoute(handler.HandleUpdateQuantity))
	mux.HandleFunc("DELETE /cart/items/{id}", telemetry.WithHTTPRoute(handler.HandleRemoveItem))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(handler.HandleClearCart))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(handler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleListOrders))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGetOrder))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(handler.HandleCancelOrder))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "storefront",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /cart/stream holds its response open.
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
