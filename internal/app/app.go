// Package app wires the marketplace service together: configuration,
// storage, domain services, HTTP transport, and the background job
// schedule.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
	"github.com/wellnesstree/marketplace-api/internal/domain/order"
	"github.com/wellnesstree/marketplace-api/internal/domain/referral"
	"github.com/wellnesstree/marketplace-api/internal/handler"
	"github.com/wellnesstree/marketplace-api/internal/scheduler"
	"github.com/wellnesstree/marketplace-api/internal/storage/postgres"
	"github.com/wellnesstree/marketplace-api/pkg/health"
	"github.com/wellnesstree/marketplace-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the job
// scheduler, and handles graceful shutdown. It is the single wiring
// point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	merchantRepo := postgres.NewMerchantRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	counterRepo := postgres.NewCounterRepository(pool)
	adsRepo := postgres.NewAdsRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	referralRepo := postgres.NewReferralRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	meter := m.MeterProvider().Meter("wellnesstree.marketplace")

	// Domain services.
	numbers := order.NewNumberGenerator(counterRepo)
	referrals := referral.NewValidator(referralRepo)
	orderService := order.NewService(productRepo, merchantRepo, numbers, orderRepo, referrals)

	screen := ads.NewCodeScreen()
	processor, err := ads.NewProcessor(adsRepo, screen, meter)
	if err != nil {
		return errors.Wrap(err, "create conversion processor")
	}
	// The screen fails open until the first load succeeds, so a startup
	// error only costs extra selection lookups.
	if err := processor.LoadScreen(ctx); err != nil {
		lg.Warn("Initial tracking-code screen load failed", zap.Error(err))
	}

	tracker, err := ads.NewTracker(adsRepo, meter)
	if err != nil {
		return errors.Wrap(err, "create ad tracker")
	}

	// HTTP handlers.
	h, err := handler.NewHandler(productRepo, orderService, orderRepo, tracker, meter)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}
	security := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux, security.Middleware)

	// Background jobs.
	sched := scheduler.New(lg.Named("scheduler"))
	sched.Every("conversion-worker", cfg.Jobs.ConversionInterval,
		scheduler.ConversionWorkerJob(outboxRepo, processor, outboxRepo.MaxAttempts(), lg))
	sched.Every("activate-ads", cfg.Jobs.ActivateInterval, scheduler.ActivateAdsJob(adsRepo, lg))
	sched.Every("screen-reload", cfg.Jobs.ScreenReload, processor.LoadScreen)
	sched.DailyAt("end-ads", cfg.Jobs.EndAdsAt, scheduler.EndAdsJob(adsRepo, lg))
	sched.DailyAt("daily-analytics", cfg.Jobs.AnalyticsAt, scheduler.DailyAnalyticsJob(adsRepo, lg))

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Start(ctx); err != nil {
			lg.Error("Scheduler stopped", zap.Error(err))
		}
	}()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

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
	<-schedDone
	return nil
}
