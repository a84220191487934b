package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kevin07696/subscription-billing/internal/adapters/channels"
	"github.com/kevin07696/subscription-billing/internal/adapters/database"
	"github.com/kevin07696/subscription-billing/internal/adapters/kafka"
	"github.com/kevin07696/subscription-billing/internal/adapters/postgres"
	"github.com/kevin07696/subscription-billing/internal/adapters/stripe"
	"github.com/kevin07696/subscription-billing/internal/config"
	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/events"
	adminHandler "github.com/kevin07696/subscription-billing/internal/handlers/admin"
	cronHandler "github.com/kevin07696/subscription-billing/internal/handlers/cron"
	storefrontHandler "github.com/kevin07696/subscription-billing/internal/handlers/storefront"
	webhookHandler "github.com/kevin07696/subscription-billing/internal/handlers/webhook"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
	scheduleService "github.com/kevin07696/subscription-billing/internal/services/schedule"
	subscriptionService "github.com/kevin07696/subscription-billing/internal/services/subscription"
	pkghttp "github.com/kevin07696/subscription-billing/pkg/http"
	"github.com/kevin07696/subscription-billing/pkg/logging"
	"github.com/kevin07696/subscription-billing/pkg/middleware"
	"github.com/kevin07696/subscription-billing/pkg/observability"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
	"github.com/kevin07696/subscription-billing/pkg/shutdown"
	"github.com/kevin07696/subscription-billing/pkg/timeutil"
)

const eventBusBuffer = 256

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		// logger config lives in cfg, so this is the one place we print directly
		_, _ = os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logger.Development(), cfg.Logger.Level)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting subscription billing service",
		ports.String("environment", cfg.Logger.Environment),
		ports.String("addr", cfg.Server.Addr()),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", ports.Err(err))
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

// Dependencies holds all initialized services and handlers
type Dependencies struct {
	db            *database.PostgreSQLAdapter
	jobStorage    *postgres.JobStorage
	worker        *jobqueue.Worker
	bus           *events.Bus
	consumer      *kafka.Consumer
	redis         redis.UniversalClient
	tracker       *shutdown.InFlightTracker
	webhook       *webhookHandler.Handler
	storefront    *storefrontHandler.Handler
	admin         *adminHandler.Handler
	cronJobs      *cronHandler.JobsHandler
	healthChecker *observability.HealthChecker
}

func run(cfg *config.Config, logger *logging.ZapLoggerAdapter) error {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	deps, err := initDependencies(ctx, cfg, logger, shutdownMgr)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newRouter(cfg, deps, logger),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	metricsServer := observability.NewMetricsServer(cfg.Metrics.Port, deps.healthChecker)

	scheduler, err := newScheduler(cfg, deps, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", ports.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return observability.ServeMetrics(gctx, metricsServer, logger) })
	g.Go(func() error { return deps.worker.Run(gctx) })
	g.Go(func() error { return deps.bus.Run(gctx) })
	if deps.consumer != nil {
		g.Go(func() error { return deps.consumer.Run(gctx) })
	}

	scheduler.Start()

	// LIFO: the HTTP server stops first, the pool last
	shutdownMgr.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdownMgr.Register("jobs in flight", deps.tracker.Shutdown)
	shutdownMgr.Register("http server", httpServer.Shutdown)

	<-gctx.Done()
	logger.Info("Shutting down")

	shutdownErr := shutdownMgr.Shutdown()
	if err := g.Wait(); err != nil {
		return err
	}
	return shutdownErr
}

// initDependencies initializes all services and handlers with dependency injection
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.ZapLoggerAdapter, shutdownMgr *shutdown.Manager) (*Dependencies, error) {
	zapLogger := logger.Zap()
	timeouts := resilience.DefaultTimeoutConfig()

	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	db, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}
	shutdownMgr.RegisterNoErr("database", db.Close)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Info("Database migrations applied")
	}
	db.StartPoolMonitoring(ctx, cfg.Database.MonitorPeriod)

	exec := postgres.NewDBExecutor(db.Pool())
	orders := postgres.NewOrderRepository(exec)
	history := postgres.NewHistoryRepository(exec)
	paymentEvents := postgres.NewPaymentEventRepository(exec)
	schedules := postgres.NewScheduleRepository(exec)
	promotions := postgres.NewPromotionSource(exec)
	jobStorage := postgres.NewJobStorage(exec)

	secretManager, err := initSecretManager(ctx, cfg.Secrets, logger)
	if err != nil {
		return nil, err
	}

	registry, err := channels.LoadRegistry(cfg.Channels.File, secretManager, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Channel registry loaded", ports.Strings("channels", registry.Tokens()))

	providerCfg := stripe.DefaultClientConfig()
	providerCfg.BaseURL = cfg.Provider.BaseURL
	providerCfg.APIVersion = cfg.Provider.APIVersion
	providerCfg.Timeouts = timeouts
	httpClient := pkghttp.NewHTTPClient(pkghttp.ProviderClientConfig(), cfg.Provider.Timeout)
	httpClient.Transport = otelhttp.NewTransport(httpClient.Transport)
	providers, err := stripe.NewFactory(providerCfg, stripe.NewSignatureVerifier(cfg.Provider.SignatureTolerance), httpClient, logger)
	if err != nil {
		return nil, err
	}

	var redisClient redis.UniversalClient
	var notifier jobqueue.Notifier
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		redisClient = redis.NewClient(opts)
		notifier = jobqueue.NewRedisNotifier(redisClient, cfg.Redis.Prefix)
		shutdownMgr.RegisterCloser("redis", redisClient)
	} else {
		logger.Warn("REDIS_URL not set, job workers poll only")
	}

	queue, err := jobqueue.NewQueue(jobStorage, domain.BillingQueueName, notifier, logger)
	if err != nil {
		return nil, err
	}

	subscriptions := subscriptionService.NewService(subscriptionService.Config{
		Timeouts: timeouts,
		Now:      timeutil.Now,
	}, subscriptionService.Dependencies{
		Orders:        orders,
		History:       history,
		PaymentEvents: paymentEvents,
		Promotions:    promotions,
		Channels:      registry,
		Providers:     providers,
		Jobs:          jobqueue.NewBillingJobs(queue),
	}, logger)

	tracker := shutdown.NewInFlightTracker("billing jobs", logger)
	workerOpts := []jobqueue.WorkerOption{
		jobqueue.WithPollInterval(cfg.Queue.PollInterval),
		jobqueue.WithLockTimeout(cfg.Queue.LockTimeout),
		jobqueue.WithTimeouts(timeouts),
		jobqueue.WithTracker(tracker),
	}
	if notifier != nil {
		workerOpts = append(workerOpts, jobqueue.WithNotifier(notifier))
	}
	worker, err := jobqueue.NewWorker(jobStorage, domain.BillingQueueName, logger, workerOpts...)
	if err != nil {
		return nil, err
	}
	jobqueue.RegisterBillingHandlers(worker, subscriptions)

	bus := events.NewBus(logger, eventBusBuffer)
	bus.SubscribeOrderLineCreated(subscriptions.OnOrderLineCreated)
	bus.SubscribeStockMovement(subscriptions.OnStockMovement)

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled() {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, bus, logger)
		shutdownMgr.RegisterCloser("kafka consumer", consumer)
	}

	healthChecker := observability.NewHealthChecker(cfg.Metrics.HealthTimeout)
	healthChecker.Register("postgres", db.HealthCheck)
	if redisClient != nil {
		healthChecker.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	schedulesSvc := scheduleService.NewService(schedules, registry, logger)

	return &Dependencies{
		db:         db,
		jobStorage: jobStorage,
		worker:     worker,
		bus:        bus,
		consumer:   consumer,
		redis:      redisClient,
		tracker:    tracker,
		webhook:    webhookHandler.NewHandler(subscriptions, zapLogger),
		storefront: storefrontHandler.NewHandler(subscriptions, zapLogger),
		admin: adminHandler.NewHandler(adminHandler.Config{
			Token: cfg.Server.AdminToken,
			Queue: domain.BillingQueueName,
		}, schedulesSvc, subscriptions, jobStorage, zapLogger),
		cronJobs:      cronHandler.NewJobsHandler(worker, jobStorage, domain.BillingQueueName, zapLogger, cfg.Cron.Secret),
		healthChecker: healthChecker,
	}, nil
}

func newRouter(cfg *config.Config, deps *Dependencies, logger ports.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.NewSecurityHeaders(cfg.Logger.Development()).Middleware)
	r.Use(observability.HTTPMetrics)
	r.Use(middleware.HandlerTimeout(resilience.DefaultTimeoutConfig()))

	// provider retries are bursty, so the webhook is limited per source address only
	webhookLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS*5, cfg.Server.RateLimitBurst*5, middleware.RemoteIP)
	r.With(webhookLimiter.Middleware).Post("/stripe-subscriptions/webhook", deps.webhook.HandleWebhook)

	storefrontLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, middleware.RemoteIP)
	r.With(storefrontLimiter.Middleware).Route("/storefront", deps.storefront.Routes)

	adminLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, middleware.HeaderOrIP("Authorization"))
	// payment event and job listings get large
	r.With(adminLimiter.Middleware, chimiddleware.Compress(5, "application/json")).Route("/admin", deps.admin.Routes)

	r.Post("/cron/release-expired-locks", deps.cronJobs.ReleaseExpiredLocks)
	r.Get("/cron/jobs/stats", deps.cronJobs.Stats)
	r.Get("/cron/health", deps.cronJobs.HealthCheck)
	r.Get("/healthz", deps.healthChecker.HealthHandler())

	return otelhttp.NewHandler(r, "subscription-billing")
}

// newScheduler schedules the in-process maintenance; the cron endpoints remain for external schedulers
func newScheduler(cfg *config.Config, deps *Dependencies, logger ports.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	timeouts := resilience.DefaultTimeoutConfig()

	if cfg.Cron.ReleaseLocksSpec != "" {
		if _, err := c.AddFunc(cfg.Cron.ReleaseLocksSpec, func() {
			ctx, cancel := timeouts.CronContext(context.Background())
			defer cancel()
			if _, err := deps.worker.ReleaseExpiredLocks(ctx); err != nil {
				logger.Error("Scheduled lock release failed", ports.Err(err))
			}
		}); err != nil {
			return nil, err
		}
	}

	if cfg.Cron.QueueStatsSpec != "" {
		if _, err := c.AddFunc(cfg.Cron.QueueStatsSpec, func() {
			ctx, cancel := timeouts.CronContext(context.Background())
			defer cancel()
			counts, err := deps.jobStorage.CountByStatus(ctx, domain.BillingQueueName)
			if err != nil {
				logger.Warn("Queue stats unavailable", ports.Err(err))
				return
			}
			for _, status := range []jobqueue.Status{jobqueue.StatusPending, jobqueue.StatusProcessing, jobqueue.StatusCompleted, jobqueue.StatusFailed} {
				observability.SetQueueDepth(domain.BillingQueueName, string(status), counts[status])
			}
			if counts[jobqueue.StatusFailed] > 0 {
				logger.Warn("Dead jobs waiting for requeue", ports.Int("count", counts[jobqueue.StatusFailed]))
			}
		}); err != nil {
			return nil, err
		}
	}

	return c, nil
}
