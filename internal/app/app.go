// Package app wires storage, domain services and the HTTP server together.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/address"
	"github.com/xenking/bistro/internal/domain/discount"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/event"
	"github.com/xenking/bistro/internal/domain/order"
	"github.com/xenking/bistro/internal/domain/rating"
	"github.com/xenking/bistro/internal/domain/report"
	"github.com/xenking/bistro/internal/handler"
	"github.com/xenking/bistro/internal/storage/kafka"
	"github.com/xenking/bistro/internal/storage/postgres"
	"github.com/xenking/bistro/internal/storage/redis"
	"github.com/xenking/bistro/internal/telemetry"
	"github.com/xenking/bistro/pkg/health"
	"github.com/xenking/bistro/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	metrics, err := telemetry.New(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	var reportCache report.Cache = report.NopCache{}
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		reportCache = redis.NewReportCache(client, cfg.Redis.ReportTTL)
		lg.Info("Report cache enabled", zap.Duration("ttl", cfg.Redis.ReportTTL))
	}

	var events event.Publisher = event.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(
			kafka.NewWriter(strings.Join(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic),
			cfg.Kafka.WriteTimeout,
		)
		defer func() {
			if err := publisher.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		}()
		events = publisher
		lg.Info("Event publishing enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	// Repositories.
	dishRepo := postgres.NewDishRepository(pool)
	addressRepo := postgres.NewAddressRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool, postgres.RetryConfig{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.Retry.InitialDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
		Jitter:        cfg.Retry.Jitter,
	})
	ratingRepo := postgres.NewRatingRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)

	// Domain services.
	h := handler.New(handler.Services{
		Orders: order.NewService(dishRepo, addressRepo, orderRepo,
			order.WithEvents(events),
			order.WithMetrics(metrics),
			order.WithReceipts(order.QRReceipts{BaseURL: cfg.PublicBaseURL}),
		),
		Discounts: discount.NewLedger(discountRepo,
			discount.WithEvents(events),
			discount.WithMetrics(metrics),
		),
		Ratings: rating.NewService(ratingRepo, dishRepo,
			rating.WithEvents(events),
			rating.WithMetrics(metrics),
		),
		Menu:      dish.NewService(dishRepo),
		Addresses: address.NewService(addressRepo),
		Reports: report.NewService(reportRepo,
			report.WithCache(reportCache),
			report.WithMetrics(metrics),
		),
	})

	router := mux.NewRouter()
	router.HandleFunc("/livez", healthSvc.LiveEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/readyz", healthSvc.ReadyEndpoint).Methods(http.MethodGet)
	h.Register(router, handler.NewAuthenticator(tokenRepo, []byte(cfg.TokenPepper)))
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("bistro-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
