package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	leadapp "github.com/nexus/backend/internal/application/lead"
	syncapp "github.com/nexus/backend/internal/application/sync"
	webhookapp "github.com/nexus/backend/internal/application/webhook"
	"github.com/nexus/backend/internal/domain/shared"
	"github.com/nexus/backend/internal/infrastructure/attribution/meta"
	"github.com/nexus/backend/internal/infrastructure/auth"
	"github.com/nexus/backend/internal/infrastructure/cache"
	"github.com/nexus/backend/internal/infrastructure/config"
	"github.com/nexus/backend/internal/infrastructure/crm/hubspot"
	"github.com/nexus/backend/internal/infrastructure/crm/zoho"
	"github.com/nexus/backend/internal/infrastructure/event"
	"github.com/nexus/backend/internal/infrastructure/logger"
	"github.com/nexus/backend/internal/infrastructure/messaging/whatsapp"
	"github.com/nexus/backend/internal/infrastructure/persistence"
	"github.com/nexus/backend/internal/infrastructure/queue"
	"github.com/nexus/backend/internal/infrastructure/scheduler"
	"github.com/nexus/backend/internal/infrastructure/security"
	"github.com/nexus/backend/internal/infrastructure/telemetry"
	"github.com/nexus/backend/internal/interfaces/http/handler"
	"github.com/nexus/backend/internal/interfaces/http/middleware"
	"github.com/nexus/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Lead Sync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis backs the capture guards, the opt-out cache, and the token
	// blacklist. When it is unreachable the in-memory fallbacks keep the
	// server usable on a single node.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisUp := true
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		redisUp = false
		log.Warn("Redis unreachable, using in-memory capture guards", zap.Error(err))
	}

	// Initialize repositories
	leadRepo := persistence.NewGormLeadRepository(db.DB)
	syncRecordRepo := persistence.NewGormSyncRecordRepository(db.DB)
	messageLogRepo := persistence.NewGormMessageLogRepository(db.DB)
	deadLetterRepo := persistence.NewGormDeadLetterRepository(db.DB)
	tokenStore := persistence.NewGormTokenStore(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	jobRepo := queue.NewGormJobRepository(db.DB)

	// Initialize event serializer and the transactional outbox. Lead
	// events are written in the same transaction as the lead itself.
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	leadRepo.SetOutboxEventSaver(outboxPublisher)

	// Capture guards
	var captchaVerifier leadapp.CaptchaVerifier
	if cfg.Security.CaptchaEnabled {
		captchaVerifier = security.NewHCaptchaVerifier(security.CaptchaConfig{
			Secret:   cfg.Security.CaptchaSecret,
			Timeout:  cfg.Security.CaptchaTimeout,
			FailOpen: cfg.Security.CaptchaFailOpen,
		}, log)
	}

	var (
		rateLimiter      leadapp.RateLimiter
		dedupGuard       leadapp.DedupGuard
		optOuts          syncapp.OptOutStore
		blacklist        auth.TokenBlacklist
		idempotencyStore shared.IdempotencyStore
	)
	if redisUp {
		rateLimiter = cache.NewRedisRateLimiter(redisClient, "lead:rate", int64(cfg.Security.LeadRateLimit), cfg.Security.LeadRateWindow)
		dedupGuard = cache.NewRedisDedupGuard(redisClient, "lead:dedup", cfg.Security.PhoneDedupTTL)
		optOuts = cache.NewRedisOptOutStore(redisClient, "lead:optout")
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
		idempotencyStore = cache.NewRedisIdempotencyStoreWithClient(redisClient, "event:processed")
	} else {
		rateLimiter = cache.NewInMemoryRateLimiter(int64(cfg.Security.LeadRateLimit), cfg.Security.LeadRateWindow)
		dedupGuard = cache.NewInMemoryDedupGuard(cfg.Security.PhoneDedupTTL)
		optOuts = cache.NewInMemoryOptOutStore()
		blacklist = auth.NewInMemoryTokenBlacklist()
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
	}

	// Lead application service
	leadService := leadapp.NewService(leadRepo, syncRecordRepo, captchaVerifier, rateLimiter, dedupGuard, log)

	// Platform adapters. An unconfigured platform leaves its adapter in
	// skip mode; jobs against it record SKIPPED in the sync ledger.
	hubspotAdapter, err := hubspot.NewAdapter(&hubspot.Config{
		AccessToken:   cfg.HubSpot.AccessToken,
		PipelineID:    cfg.HubSpot.PipelineID,
		WebhookSecret: cfg.HubSpot.WebhookSecret,
		BaseURL:       cfg.HubSpot.BaseURL,
		Timeout:       cfg.HubSpot.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create HubSpot adapter", zap.Error(err))
	}

	zohoConfig := &zoho.Config{
		ClientID:       cfg.Zoho.ClientID,
		ClientSecret:   cfg.Zoho.ClientSecret,
		RefreshToken:   cfg.Zoho.RefreshToken,
		AccountsURL:    cfg.Zoho.AccountsURL,
		APIBaseURL:     cfg.Zoho.APIBaseURL,
		Timeout:        cfg.Zoho.Timeout,
		ConvertTimeout: cfg.Queue.ConvertTimeout,
		TokenSkew:      cfg.Zoho.TokenSkew,
	}
	if err := zohoConfig.Validate(); err != nil {
		log.Fatal("Invalid Zoho configuration", zap.Error(err))
	}
	zohoTokens := zoho.NewTokenSource(zohoConfig, tokenStore, log)
	zohoAdapter, err := zoho.NewAdapter(zohoConfig, zohoTokens)
	if err != nil {
		log.Fatal("Failed to create Zoho adapter", zap.Error(err))
	}

	whatsappSender, err := whatsapp.NewSender(&whatsapp.Config{
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		VerifyToken:   cfg.WhatsApp.VerifyToken,
		AppSecret:     cfg.WhatsApp.AppSecret,
		BaseURL:       cfg.WhatsApp.BaseURL,
		Timeout:       cfg.WhatsApp.Timeout,
		TemplateLang:  cfg.WhatsApp.TemplateLang,
		BrochureURL:   cfg.WhatsApp.BrochureURL,
	})
	if err != nil {
		log.Fatal("Failed to create WhatsApp sender", zap.Error(err))
	}

	metaSender, err := meta.NewSender(&meta.Config{
		AccessToken:   cfg.Meta.AccessToken,
		PixelID:       cfg.Meta.PixelID,
		VerifyToken:   cfg.Meta.VerifyToken,
		AppSecret:     cfg.Meta.AppSecret,
		TestEventCode: cfg.Meta.TestEventCode,
		BaseURL:       cfg.Meta.BaseURL,
		Timeout:       cfg.Meta.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create Meta sender", zap.Error(err))
	}

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("nexus.sync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Sync job queue: registry, enqueuer, handlers, dead letter sink,
	// worker pool.
	jobRegistry := queue.NewRegistry()
	enqueuer := queue.NewRepositoryEnqueuer(jobRepo, jobRegistry)
	deadLetterService := syncapp.NewDeadLetterService(deadLetterRepo, enqueuer, log)

	handlerSet := syncapp.NewHandlerSet(
		leadRepo,
		syncRecordRepo,
		messageLogRepo,
		optOuts,
		hubspotAdapter,
		zohoAdapter,
		whatsappSender,
		metaSender,
		log,
	)
	handlerSet.Register(jobRegistry, syncapp.RetryPolicy{
		MessagingBase:        cfg.Queue.MessagingBase,
		CRMBase:              cfg.Queue.CRMBase,
		MessagingMaxAttempts: cfg.Queue.MessagingMaxAtt,
		CRMMaxAttempts:       cfg.Queue.CRMMaxAtt,
		Timeout:              cfg.Queue.JobTimeout,
		ConvertTimeout:       cfg.Queue.ConvertTimeout,
	})

	worker := queue.NewWorker(queue.WorkerConfig{
		WorkerCount:    cfg.Queue.WorkerCount,
		PollInterval:   cfg.Queue.PollInterval,
		BatchSize:      cfg.Queue.BatchSize,
		DefaultTimeout: cfg.Queue.JobTimeout,
	}, jobRepo, jobRegistry, deadLetterService, syncMetrics, log)
	if err := worker.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync worker", zap.Error(err))
	}
	defer func() {
		if err := worker.Stop(context.Background()); err != nil {
			log.Error("Error stopping sync worker", zap.Error(err))
		}
	}()

	// Event bus routes lead lifecycle events to the sync dispatcher,
	// which fans them out into per-platform jobs. Outbox delivery is
	// at-least-once, so the dispatcher is wrapped with an idempotency
	// check to keep redelivered events from duplicating jobs.
	eventBus := event.NewInMemoryEventBus(log)
	dispatcher := syncapp.NewDispatcher(enqueuer, syncapp.DefaultDispatcherConfig(), log)
	eventBus.Subscribe(event.NewIdempotentHandler(dispatcher, idempotencyStore, log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Outbox processor delivers persisted lead events to the bus
	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, event.OutboxProcessorConfig{
		BatchSize:        cfg.Event.BatchSize,
		PollInterval:     cfg.Event.PollInterval,
		CleanupEnabled:   cfg.Event.CleanupEnabled,
		CleanupRetention: cfg.Event.CleanupRetention,
	}, log)
	if cfg.Event.ProcessorEnabled {
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	}

	// Maintenance beat: dead letter sweep and Zoho token refresh
	if cfg.Scheduler.Enabled {
		tasks := []scheduler.Task{
			{
				Name:     "dead-letter-sweep",
				Interval: cfg.Scheduler.DeadLetterSweepEvery,
				Run: func(ctx context.Context) error {
					resolved, err := deadLetterService.Sweep(ctx, cfg.Scheduler.DeadLetterSweepLimit)
					if resolved > 0 {
						log.Info("Dead letter sweep resubmitted jobs", zap.Int("count", resolved))
					}
					return err
				},
			},
		}
		if zohoConfig.Configured() {
			tasks = append(tasks, scheduler.Task{
				Name:     "zoho-token-refresh",
				Interval: cfg.Scheduler.TokenRefreshEvery,
				Run: func(ctx context.Context) error {
					_, err := zohoTokens.Refresh(ctx)
					return err
				},
			})
		}
		beat := scheduler.NewBeat(log, tasks...)
		if err := beat.Start(context.Background()); err != nil {
			log.Fatal("Failed to start maintenance beat", zap.Error(err))
		}
		defer func() {
			if err := beat.Stop(context.Background()); err != nil {
				log.Error("Error stopping maintenance beat", zap.Error(err))
			}
		}()
	}

	// Webhook reconcilers apply platform-side changes back to the pipeline
	hubspotReconciler := webhookapp.NewHubSpotReconciler(syncRecordRepo, leadService, hubspot.StatusForStage, log)
	whatsappReconciler := webhookapp.NewWhatsAppReconciler(messageLogRepo, leadService, optOuts, log)
	metaLeadsReconciler := webhookapp.NewMetaLeadsReconciler(metaSender, leadService, log)

	// Auth services for the single-admin API
	jwtService := auth.NewJWTService(cfg.JWT)
	credentials := auth.NewCredentialChecker(cfg.JWT)

	// Initialize HTTP handlers
	leadHandler := handler.NewLeadHandler(leadService)
	webhookHandler := handler.NewWebhookHandler(
		hubspotReconciler,
		whatsappReconciler,
		metaLeadsReconciler,
		handler.WebhookSecrets{
			HubSpotSecret:   cfg.HubSpot.WebhookSecret,
			WhatsAppToken:   cfg.WhatsApp.VerifyToken,
			WhatsAppSecret:  cfg.WhatsApp.AppSecret,
			MetaVerifyToken: cfg.Meta.VerifyToken,
			MetaAppSecret:   cfg.Meta.AppSecret,
		},
		syncMetrics,
		log,
	)
	deadLetterHandler := handler.NewDeadLetterHandler(deadLetterService)
	authHandler := handler.NewAuthHandler(credentials, jwtService, blacklist, log)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		httpLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(httpLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	jwtAuth := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		Logger:         log,
	})

	// Public capture endpoint. Abuse protection lives in the lead
	// service: captcha, per-IP rate limit, phone dedup.
	captureRoutes := router.NewDomainGroup("capture", "/leads")
	captureRoutes.POST("", leadHandler.Capture)

	// Admin lead pipeline
	leadRoutes := router.NewDomainGroup("leads", "/leads")
	leadRoutes.Use(jwtAuth)
	leadRoutes.GET("", leadHandler.List)
	leadRoutes.GET("/:id", leadHandler.Get)
	leadRoutes.PATCH("/:id/status", leadHandler.ChangeStatus)
	leadRoutes.GET("/:id/sync-status", leadHandler.SyncStatus)
	leadRoutes.DELETE("/:id", leadHandler.Erase)

	// Platform webhooks verify themselves by signature, not by JWT. The
	// tighter body cap bounds what an unauthenticated caller can post.
	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks")
	webhookRoutes.Use(middleware.BodyLimit(cfg.Security.WebhookBodyMax))
	webhookRoutes.POST("/hubspot", webhookHandler.HubSpot)
	webhookRoutes.GET("/whatsapp", webhookHandler.WhatsAppVerify)
	webhookRoutes.POST("/whatsapp", webhookHandler.WhatsApp)
	webhookRoutes.GET("/meta-leads", webhookHandler.MetaLeadsVerify)
	webhookRoutes.POST("/meta-leads", webhookHandler.MetaLeads)

	// Session endpoints
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.RefreshToken)

	sessionRoutes := router.NewDomainGroup("session", "/auth")
	sessionRoutes.Use(jwtAuth)
	sessionRoutes.POST("/logout", authHandler.Logout)

	// Operator surface for exhausted sync jobs
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.Use(jwtAuth)
	adminRoutes.GET("/dead-letters", deadLetterHandler.List)
	adminRoutes.POST("/dead-letters/:id/resolve", deadLetterHandler.Resolve)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(captureRoutes).
		Register(leadRoutes).
		Register(webhookRoutes).
		Register(authRoutes).
		Register(sessionRoutes).
		Register(adminRoutes).
		Register(systemRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
