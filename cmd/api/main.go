package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/josh-kwaku/invoice-pay/internal/checkout"
	"github.com/josh-kwaku/invoice-pay/internal/config"
	"github.com/josh-kwaku/invoice-pay/internal/erp"
	"github.com/josh-kwaku/invoice-pay/internal/events"
	"github.com/josh-kwaku/invoice-pay/internal/handler"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
	"github.com/josh-kwaku/invoice-pay/internal/middleware"
	"github.com/josh-kwaku/invoice-pay/internal/repository"
	"github.com/josh-kwaku/invoice-pay/internal/service"
	svccheckout "github.com/josh-kwaku/invoice-pay/internal/service/checkout"
	"github.com/josh-kwaku/invoice-pay/internal/service/invoice"
	"github.com/josh-kwaku/invoice-pay/internal/service/reconcile"
)

const idempotencyCleanupInterval = time.Hour

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("invoice-pay-api", cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting invoice-pay api", "version", version, "env", cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	jobRepo := repository.NewReconciliationJobRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	gateway := checkout.NewStripeGateway(cfg.StripeAPIKey, nil)
	erpClient := erp.NewClient(erp.Config{
		BaseURL:         cfg.ERPBaseURL,
		Username:        cfg.ERPUsername,
		Password:        cfg.ERPPassword,
		Tenant:          cfg.ERPTenant,
		Endpoint:        cfg.ERPEndpoint,
		Version:         cfg.ERPEndpointVersion,
		ReleaseEndpoint: cfg.ERPReleaseEndpoint,
		Timeout:         cfg.ERPTimeout,
	})

	checkoutSvc := svccheckout.NewService(
		erpClient,
		invoice.NewValidator(cfg.InvoiceNumberWidth),
		svccheckout.NewSessionBuilder(cfg.CheckoutTitlePrefix, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
		gateway,
	)
	confirmationSvc := svccheckout.NewConfirmationService(gateway, jobRepo)

	workflow := reconcile.NewWorkflow(gateway, erpClient,
		reconcile.PaymentSettings{
			PaymentMethod:      cfg.PaymentMethod,
			FeeEntryType:       cfg.FeeEntryType,
			CashAccounts:       cfg.CashAccounts,
			DefaultCashAccount: cfg.DefaultCashAccount,
		},
		reconcile.RetryPolicy{
			MaxAttempts: cfg.SettlementMaxAttempts,
			Backoff:     reconcile.LinearBackoff(cfg.SettlementBackoffStep),
		},
	)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		slog.Info("publishing reconciliation events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("failed to close event publisher", "error", err)
		}
	}()

	worker := service.NewReconciliationWorker(jobRepo, workflow, publisher, logger.With("component", "reconciliation_worker"),
		service.WorkerConfig{
			Interval:  cfg.WorkerPollInterval,
			BatchSize: cfg.WorkerBatchSize,
			Lease:     cfg.WorkerLease,
		},
	)

	healthH := handler.NewHealthHandler(version,
		handler.DatabaseCheck(db),
		handler.ERPCheck(&http.Client{Timeout: 5 * time.Second}, cfg.ERPBaseURL),
	)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc, confirmationSvc)
	adminH := handler.NewAdminHandler(jobRepo)
	requireAdmin := middleware.Auth(cfg.AdminJWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthH.Liveness)
	mux.HandleFunc("GET /ready", healthH.Readiness)
	mux.Handle("POST /api/v1/checkout-sessions", middleware.Idempotency(idempotencyRepo)(http.HandlerFunc(checkoutH.CreateSession)))
	mux.HandleFunc("GET /api/v1/checkout/confirmation", checkoutH.Confirm)
	mux.Handle("GET /api/v1/admin/reconciliations/{session_id}", requireAdmin(http.HandlerFunc(adminH.GetReconciliation)))
	mux.Handle("POST /api/v1/admin/reconciliations/{session_id}/retry", requireAdmin(http.HandlerFunc(adminH.RetryReconciliation)))

	if cfg.StripeWebhookSecret != "" {
		webhookH := handler.NewWebhookHandler(checkout.NewWebhookVerifier(cfg.StripeWebhookSecret), confirmationSvc)
		mux.HandleFunc("POST /api/v1/webhooks/stripe", webhookH.ReceiveStripeWebhook)
	} else {
		slog.Warn("STRIPE_WEBHOOK_SECRET not set, webhook route disabled")
	}

	var h http.Handler = mux
	h = middleware.Recovery(h)
	h = middleware.Logging(h)
	h = middleware.Tracing(h)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ERPTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Start(bgCtx)
	}()
	go func() {
		defer wg.Done()
		cleanIdempotencyCache(bgCtx, idempotencyRepo, idempotencyCleanupInterval)
	}()

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	stopBackground()
	wg.Wait()
	slog.Info("server stopped")
}

type expiredEntryCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func cleanIdempotencyCache(ctx context.Context, repo expiredEntryCleaner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Error("idempotency cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("idempotency cache cleaned", "deleted", n)
			}
		}
	}
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		ApplicationName:  "invoice-pay-api",
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, openErr := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if openErr == nil {
			return db, nil
		}
		err = openErr
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
