// Package main provides the derivation engine service entry point.
// Runs the billing, order-materialization and metrics derivations on
// their timers and serves the derived views over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/api/handlers"
	"github.com/carelogic/go-hde/internal/api/middleware"
	"github.com/carelogic/go-hde/internal/derive/billing"
	derivemetrics "github.com/carelogic/go-hde/internal/derive/metrics"
	"github.com/carelogic/go-hde/internal/derive/orders"
	"github.com/carelogic/go-hde/internal/infrastructure/redpanda"
	obsmetrics "github.com/carelogic/go-hde/internal/observability/metrics"
	"github.com/carelogic/go-hde/internal/observability/tracing"
	"github.com/carelogic/go-hde/internal/scheduler"
	"github.com/carelogic/go-hde/internal/snapshot"
	"github.com/carelogic/go-hde/internal/store"
	"github.com/carelogic/go-hde/internal/views"
	"github.com/carelogic/go-hde/pkg/circuitbreaker"
)

// Config holds application configuration.
type Config struct {
	Port            string
	KafkaBrokers    []string
	OTLPEndpoint    string
	APIKeys         map[string]string
	BillingInterval time.Duration
	OrdersInterval  time.Duration
	MetricsInterval time.Duration
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := loadConfig()
	ctx := context.Background()

	// Tracing is optional; without an endpoint the global otel provider
	// stays a no-op.
	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("derivation-engine")
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := tracing.Init(ctx, tcfg)
		if err != nil {
			logger.Fatal("tracing init failed", zap.Error(err))
		}
		defer provider.Shutdown(ctx)
	}

	appMetrics := obsmetrics.New()

	cbManager := circuitbreaker.NewManager(logger, func(name string, state circuitbreaker.State) {
		appMetrics.CircuitBreakerState.WithLabelValues(name).Set(circuitbreaker.StateValue(state))
	})

	backend, err := store.Open(ctx, logger)
	if err != nil {
		logger.Fatal("store open failed", zap.Error(err))
	}
	storeCB := cbManager.GetOrCreate("store", circuitbreaker.DefaultConfig("store"))
	st := store.WithBreaker(backend, storeCB, logger)

	var producer *redpanda.Producer
	if len(cfg.KafkaBrokers) > 0 {
		pcfg := redpanda.DefaultProducerConfig()
		pcfg.Brokers = cfg.KafkaBrokers
		producer, err = redpanda.NewProducer(pcfg, logger)
		if err != nil {
			logger.Fatal("producer creation failed", zap.Error(err))
		}
		defer producer.Close()

		admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.Fatal("broker admin creation failed", zap.Error(err))
		}
		if err := admin.EnsureTopics(ctx); err != nil {
			logger.Warn("topic creation failed", zap.Error(err))
		}
		admin.Close()
	}

	reader := snapshot.NewReader(st, logger)
	materializer := orders.NewMaterializer(st, logger)
	aggregator := billing.NewAggregator(logger)
	metricsEngine := derivemetrics.NewEngine(logger)

	billingView := views.NewBillingView(logger)
	pharmacyView := views.NewPharmacyQueueView(reader, materializer)
	adminView := views.NewAdminDashboardView(reader, metricsEngine)

	sched := scheduler.New(logger)
	tracer := otel.Tracer("derivation-engine")

	instrument := func(name string, run func(ctx context.Context) (any, error)) func(ctx context.Context) (any, error) {
		return func(ctx context.Context) (any, error) {
			ctx, span := tracer.Start(ctx, "derive_"+name)
			defer span.End()

			start := time.Now()
			payload, err := run(ctx)
			appMetrics.TicksTotal.WithLabelValues(name).Inc()
			appMetrics.TickDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			if err != nil {
				appMetrics.TickFailures.WithLabelValues(name).Inc()
				span.RecordError(err)
			}
			return payload, err
		}
	}

	publish := func(ctx context.Context, topic, key string, event any) {
		if producer == nil {
			return
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		producer.PublishAsync(ctx, topic, key, payload, func(err error) {
			if err == nil {
				appMetrics.EventsPublished.Inc()
			}
		})
	}

	sched.Register(scheduler.Job{
		Name:     "billing",
		Interval: cfg.BillingInterval,
		Run: instrument("billing", func(ctx context.Context) (any, error) {
			snap := reader.Take(ctx)
			ledgers := aggregator.Compute(snap)
			billingView.Refresh(ledgers)
			appMetrics.LedgersComputed.Set(float64(len(ledgers)))

			var totalDue float64
			for _, l := range ledgers {
				totalDue += l.DueAmount
			}
			publish(ctx, redpanda.TopicBillingRecomputed, "billing", redpanda.BillingRecomputedEvent{
				LedgerCount: len(ledgers),
				TotalDue:    totalDue,
				ComputedAt:  time.Now().UTC(),
			})
			return ledgers, nil
		}),
	})

	sched.Register(scheduler.Job{
		Name:     "orders",
		Interval: cfg.OrdersInterval,
		Run: instrument("orders", func(ctx context.Context) (any, error) {
			snap := reader.Take(ctx)
			result, err := materializer.Materialize(ctx, snap.Visits, snap.Orders)
			if err != nil {
				return nil, err
			}
			appMetrics.OrdersMaterialized.Add(float64(len(result.Created)))
			appMetrics.PendingOrders.Set(float64(len(orders.PendingQueue(result.History))))

			for _, o := range result.Created {
				publish(ctx, redpanda.TopicOrdersMaterialized, o.VisitID, redpanda.OrderMaterializedEvent{
					OrderID:     o.ID,
					VisitID:     o.VisitID,
					PatientName: o.PatientName,
					ItemCount:   len(o.Items),
					CreatedAt:   o.CreatedAt,
				})
			}
			if len(result.Created) == 0 {
				return nil, nil
			}
			return result.Created, nil
		}),
	})

	sched.Register(scheduler.Job{
		Name:     "metrics",
		Interval: cfg.MetricsInterval,
		Run: instrument("metrics", func(ctx context.Context) (any, error) {
			snap := reader.Take(ctx)
			am := metricsEngine.Compute(snap, time.Now())
			appMetrics.ChaosScore.Set(float64(am.ChaosScore))
			appMetrics.ActiveAlerts.Set(float64(len(am.Alerts)))

			if len(am.Alerts) > 0 {
				publish(ctx, redpanda.TopicAlertsRaised, "alerts", redpanda.AlertRaisedEvent{
					ChaosScore: am.ChaosScore,
					Alerts:     am.Alerts,
					RaisedAt:   time.Now().UTC(),
				})
			}
			return am, nil
		}),
	})

	sched.Start()
	defer sched.Stop()

	billingHandler := handlers.NewBillingHandler(billingView, logger)
	pharmacyHandler := handlers.NewPharmacyHandler(pharmacyView, logger, appMetrics.OrdersCompleted.Inc)
	adminHandler := handlers.NewAdminHandler(adminView, logger)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("derivation-engine"))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if len(cfg.KafkaBrokers) > 0 {
			if err := redpanda.HealthCheck(r.Context(), cfg.KafkaBrokers); err != nil {
				http.Error(w, "broker unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", obsmetrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Mount("/billing", billingHandler.Routes())
		r.Mount("/pharmacy", pharmacyHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting derivation engine", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	var brokers []string
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		brokers = strings.Split(b, ",")
	}

	apiKeys := map[string]string{
		"demo-api-key-12345": "demo-client",
	}
	if key := os.Getenv("API_KEY"); key != "" {
		apiKeys[key] = "env-client"
	}

	return Config{
		Port:            port,
		KafkaBrokers:    brokers,
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),
		APIKeys:         apiKeys,
		BillingInterval: intervalEnv("HDE_BILLING_INTERVAL", 5*time.Second),
		OrdersInterval:  intervalEnv("HDE_ORDERS_INTERVAL", 5*time.Second),
		MetricsInterval: intervalEnv("HDE_METRICS_INTERVAL", 15*time.Second),
	}
}

func intervalEnv(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"derivation-engine","version":"1.0.0"}`)
}
