// @title           Web2App Build API
// @version         1.0.0
// @description     Backend API that turns a website into Android and iOS apps: it assembles an Expo project, publishes it to GitHub, runs Codemagic builds, tracks their status and gates downloads behind a Stripe checkout.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"web2app-backend/internal/assembler"
	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/config"
	"web2app-backend/internal/database"
	"web2app-backend/internal/email"
	"web2app-backend/internal/github"
	"web2app-backend/internal/handlers"
	"web2app-backend/internal/logger"
	"web2app-backend/internal/middleware"
	"web2app-backend/internal/services"
	"web2app-backend/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrator, err := database.NewMigrator(cfg.DatabaseURL, zlog)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	migrator.Close()

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database client: %w", err)
	}
	defer dbClient.Close()

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	storageClient := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SupabaseStorageBucket)
	realtimeClient := supabase.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)

	publisher := github.NewPublisher(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch)
	codemagicClient := codemagic.NewClient(cfg.CodemagicAPIBaseURL, cfg.CodemagicAPIToken)
	stripeService := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	var notifier services.Notifier = services.NewLogNotifier(zlog)
	if cfg.ResendAPIKey != "" {
		sender, err := email.NewResendSender(cfg.ResendAPIBaseURL, cfg.ResendAPIKey, cfg.EmailFrom)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
		notifier = services.NewEmailNotifier(sender, supabaseClient, cfg.FrontendURL+"/dashboard", zlog)
	} else {
		zlog.Warn("RESEND_API_KEY not set, build notifications are only logged")
	}

	workflows := assembler.WorkflowIDs{
		Android: cfg.CodemagicAndroidWorkflow,
		IOS:     cfg.CodemagicIOSWorkflow,
	}
	dispatcher := services.NewDispatcher(codemagicClient, dbClient, services.DispatcherConfig{
		AppID:     cfg.CodemagicAppID,
		Branch:    cfg.CodemagicBranch,
		Workflows: workflows,
	}, zlog)
	buildService := services.NewBuildService(publisher, dispatcher, dbClient, storageClient, workflows, zlog)
	statusSync := services.NewStatusSynchronizer(codemagicClient, dbClient, realtimeClient, notifier, zlog)
	paymentGate := services.NewPaymentGate(dbClient, stripeService, services.PaymentGateConfig{
		Amount:      cfg.BuildPriceMinor,
		Currency:    cfg.BuildCurrency,
		FrontendURL: cfg.FrontendURL,
	}, zlog)

	buildsHandler := handlers.NewBuildsHandler(buildService, statusSync, paymentGate, zlog)
	paymentsHandler := handlers.NewPaymentsHandler(buildService, paymentGate, stripeService, zlog)
	webhookHandler := handlers.NewWebhookHandler(cfg.CodemagicWebhookToken, statusSync, zlog)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	router := gin.New()
	router.Use(logger.RequestLogger(zlog))
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health checks (no auth)
	router.GET("/health", handlers.HealthHandler)
	router.GET("/ready", handlers.ReadinessHandler(dbClient))

	// Webhooks authenticate themselves
	router.POST("/api/v1/webhooks/codemagic", webhookHandler.HandleCodemagic)
	router.POST("/api/v1/webhooks/stripe", paymentsHandler.StripeWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/builds", limiter.Middleware(), buildsHandler.SubmitBuild)
	api.GET("/builds", buildsHandler.ListBuilds)
	api.GET("/builds/:build_id", buildsHandler.GetBuild)
	api.POST("/builds/:build_id/sync", buildsHandler.SyncBuild)
	api.GET("/builds/:build_id/payment", buildsHandler.GetPaymentStatus)
	api.GET("/builds/:build_id/download", buildsHandler.DownloadArtifact)

	api.POST("/payments/checkout", limiter.Middleware(), paymentsHandler.CreateCheckout)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
