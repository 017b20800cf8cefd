package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kazdocs/kazdocs-platform/cmd/mainconfig"
	"github.com/kazdocs/kazdocs-platform/internal/api/router"
	"github.com/kazdocs/kazdocs-platform/internal/app/bootstrap"
	appconfig "github.com/kazdocs/kazdocs-platform/internal/config"
	"github.com/kazdocs/kazdocs-platform/internal/contacts"
	"github.com/kazdocs/kazdocs-platform/internal/events"
	httpmiddleware "github.com/kazdocs/kazdocs-platform/internal/http/middleware"
	"github.com/kazdocs/kazdocs-platform/internal/notify"
	"github.com/kazdocs/kazdocs-platform/internal/observability/metrics"
	"github.com/kazdocs/kazdocs-platform/internal/subscriptions"
	"github.com/kazdocs/kazdocs-platform/internal/users"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// Login attempts per client IP.
const (
	loginRateLimitRPS   = 0.1
	loginRateLimitBurst = 5
)

func main() {
	issueFor := flag.String("issue-admin-token", "", "print an admin token for this subject and exit")
	issueRole := flag.String("role", httpmiddleware.RoleAdmin, "role carried by -issue-admin-token")
	issueTTL := flag.Duration("ttl", 12*time.Hour, "lifetime of -issue-admin-token")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()
	cfg := appconfig.Load()

	if *issueFor != "" {
		token, err := httpmiddleware.IssueAdminToken(cfg.AdminJWTSecret, *issueFor, *issueRole, *issueTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting kazdocs API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	var sesClient *sesv2.Client
	if cfg.EmailProvider == "ses" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sesClient = mainconfig.NewSESClient(awsCfg, cfg)
	}

	application, err := buildApp(ctx, cfg, deps{pool: pool, redis: redisClient, ses: sesClient}, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	if application.deliverer != nil {
		go application.deliverer.Start(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(application.handler, "kazdocs-api"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := application.drain(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", "error", err)
	}
	if pool != nil {
		pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("server stopped")
}

type deps struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	ses   *sesv2.Client
}

type app struct {
	handler   http.Handler
	publisher events.Publisher
	deliverer *events.Deliverer
	sender    notify.EmailSender
	registry  *prometheus.Registry
}

// drain waits for notifications still being delivered in the background.
func (a *app) drain(ctx context.Context) error {
	if inline, ok := a.publisher.(*events.InlinePublisher); ok {
		return inline.Wait(ctx)
	}
	return nil
}

// buildApp wires stores, notifications and routes. Every backing service is
// optional; missing ones fall back to in-process implementations.
func buildApp(ctx context.Context, cfg *appconfig.Config, d deps, logger *logging.Logger) (*app, error) {
	registry, metricsHandler := setupMetrics()
	intake := metrics.NewIntakeMetrics(registry)

	subStore := bootstrap.BuildSubscriptionStore(d.redis, logger)
	catalog := subscriptions.NewCatalog(subStore, logger)
	if err := catalog.EnsureDefaults(ctx); err != nil {
		logger.Warn("failed to seed subscription types", "error", err)
	}

	sender := bootstrap.BuildEmailSender(cfg, d.ses, logger)
	notifier := notify.NewService(sender, cfg.LeadNotifyEmails, subStore, logger)
	publisher, deliverer := bootstrap.BuildEventPipeline(d.pool, notifier, cfg, logger)

	var contactsRepo contacts.Repository
	var usersHandler *users.Handler
	healthChecks := map[string]router.HealthCheck{}
	if d.pool != nil {
		contactsRepo = contacts.NewPostgresRepository(d.pool)
		usersHandler = users.NewHandler(users.NewPostgresRepository(d.pool), logger,
			users.WithAdminTokens(cfg.AdminJWTSecret, cfg.AdminTokenTTL))
		healthChecks["postgres"] = d.pool.Ping
	} else {
		logger.Warn("postgres not configured; contacts kept in memory and user admin disabled")
		contactsRepo = contacts.NewMemoryRepository()
	}
	if d.redis != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return d.redis.Ping(ctx).Err() }
	}

	contactsHandler := contacts.NewHandler(contactsRepo, logger,
		contacts.WithSubscriptionResolver(catalog),
		contacts.WithPublisher(publisher),
		contacts.WithMetrics(intake),
	)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET empty; admin routes disabled")
	}

	handler := router.New(&router.Config{
		Logger:               logger,
		ContactsHandler:      contactsHandler,
		SubscriptionsHandler: subscriptions.NewHandler(subStore, logger),
		UsersHandler:         usersHandler,
		RegisterLimiter:      httpmiddleware.NewRateLimiter(ctx, cfg.RegisterRateLimitRPS, cfg.RegisterRateLimitBurst),
		LoginLimiter:         httpmiddleware.NewRateLimiter(ctx, loginRateLimitRPS, loginRateLimitBurst),
		AdminAuthSecret:      cfg.AdminJWTSecret,
		MetricsHandler:       metricsHandler,
		StatsGatherer:        registry,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		HealthChecks:         healthChecks,
	})

	return &app{
		handler:   handler,
		publisher: publisher,
		deliverer: deliverer,
		sender:    sender,
		registry:  registry,
	}, nil
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
