package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appreconcile "github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	kafkarelay "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
)

const serviceName = "minishop-checkout"

func main() {
	baseLogger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", getenvDefault("ENV", "dev")),
	)
	defer syncLogger(baseLogger)

	cfg, err := config.Load()
	if err != nil {
		baseLogger.Error("config_load_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := telemetry.New(oteltrace.New(serviceName), baseLogger, buildCounters(), buildHistograms())

	// In-memory bus acts as the outbox fanout; the Kafka relay subscribes to
	// it when brokers are configured.
	bus := outbox.NewBus(baseLogger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	var (
		orderRepo domorder.Repository
		invRepo   dominv.Repository
	)
	if cfg.PostgresDSN != "" {
		if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
			baseLogger.Error("migration_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			baseLogger.Error("postgres_connect_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		orderRepo = postgres.NewOrderRepository(pool)
		invRepo = postgres.NewInventoryRepository(pool)
	} else {
		orderRepo = memory.NewOrderRepository()
		memInv := memory.NewInventoryRepository()
		seedInventory(ctx, memInv, baseLogger)
		invRepo = memInv
	}

	var gw dompay.Gateway
	if cfg.Gateway.BaseURL != "" {
		gw = gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, cfg.Gateway.ClientSecret, cfg.Gateway.Timeout, baseLogger)
	} else {
		baseLogger.Warn("payment_gateway_not_configured")
	}

	if len(cfg.KafkaBrokers) > 0 {
		relay := kafkarelay.NewRelay(cfg.KafkaBrokers, cfg.KafkaTopic, baseLogger)
		relay.Register(bus)
		defer func() { _ = relay.Close() }()
	}

	orderService := apporder.NewService(orderRepo, invRepo, gw, bus, id.NewUUIDGenerator(), cfg.Currency, cfg.ReturnURL, tel)
	reconciler := appreconcile.NewEngine(orderRepo, invRepo, gw, bus, tel)

	handler := httppresentation.NewHandler(orderService, reconciler, baseLogger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		baseLogger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", observability.F("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

func buildCounters() map[string]observability.Counter {
	reg := prometrics.New("", "")
	return map[string]observability.Counter{
		observability.MUsecaseRequests: reg.Counter(observability.MUsecaseRequests,
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: reg.Counter(observability.MHTTPRequests,
			"Total number of HTTP requests served.", "method", "route", "status"),
		observability.MExternalRequests: reg.Counter(observability.MExternalRequests,
			"Total number of outbound calls to external peers.", "peer", "endpoint", "outcome"),
		observability.MReconcileOutcomes: reg.Counter(observability.MReconcileOutcomes,
			"Reconciliation calls by source channel and result.", "source", "result"),
		observability.MInventoryInconsistency: reg.Counter(observability.MInventoryInconsistency,
			"Paid orders whose stock decrement could not be applied.", "product_id"),
	}
}

func buildHistograms() map[string]observability.Histogram {
	reg := prometrics.New("", "")
	return map[string]observability.Histogram{
		observability.MUsecaseDuration: reg.Histogram(observability.MUsecaseDuration,
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MHTTPRequestDuration: reg.Histogram(observability.MHTTPRequestDuration,
			"Duration of HTTP request handling in seconds.", prometheus.DefBuckets, "method", "route", "status"),
		observability.MExternalRequestDuration: reg.Histogram(observability.MExternalRequestDuration,
			"Duration of outbound calls to external peers in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
	}
}

// seedInventory loads a small demo catalog so the in-memory mode is usable
// out of the box.
func seedInventory(ctx context.Context, repo dominv.Repository, logger observability.Logger) {
	seeds := []struct {
		id    string
		title string
		price int64
		stock int
	}{
		{"P1", "Espresso Beans 250g", 500, 25},
		{"P2", "Pour-Over Kettle", 300, 10},
		{"P3", "Ceramic Mug", 150, 40},
	}
	for _, s := range seeds {
		product, err := dominv.NewProduct(s.id, s.title, s.price, s.stock)
		if err != nil {
			logger.Warn("inventory_seed_skipped",
				observability.F("product_id", s.id),
				observability.F("error", err.Error()),
			)
			continue
		}
		if err := repo.Save(ctx, product); err != nil {
			logger.Warn("inventory_seed_failed",
				observability.F("product_id", s.id),
				observability.F("error", err.Error()),
			)
		}
	}
	logger.Info("inventory_seeded", observability.F("products", len(seeds)))
}

func syncLogger(l observability.Logger) {
	if s, ok := l.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
