package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/authstate"
	v1 "go-dishlens-backend/internal/delivery/http/v1"
	"go-dishlens-backend/internal/repository/postgres"
	"go-dishlens-backend/internal/usecase"
	"go-dishlens-backend/pkg/database"
	"go-dishlens-backend/pkg/email"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/redis"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/storage"
	"go-dishlens-backend/pkg/supabase"
	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// @title           DishLens Backend API
// @version         1.0
// @description     Backend for the DishLens restaurant photo platform using Clean Architecture.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Loggers
	logger.Init()
	logger.Log.Info("Starting dishlens backend", "port", cfg.Port)
	security.InitAuditLogger("dishlens-backend", cfg.Environment)

	// 3. Setup Redis (optional; in-memory fallbacks cover its absence)
	if cfg.UpstashRedisURL != "" {
		if err := redis.Initialize(redis.Config{
			URL:      cfg.UpstashRedisURL,
			Password: cfg.UpstashRedisPassword,
		}); err != nil {
			logger.Log.Warn("Redis unavailable, using in-memory fallbacks", "error", err)
		}
	}
	defer redis.Close()

	// 4. Setup Database
	dbPool, err := database.NewPostgresConnection(cfg.DBUrl)
	if err != nil {
		logger.Log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 5. Setup Repositories
	clientRepo := postgres.NewClientRepository(dbPool)
	packageRepo := postgres.NewPackageRepository(dbPool)
	dishRepo := postgres.NewDishRepository(dbPool)
	leadRepo := postgres.NewLeadRepository(dbPool)
	paymentRepo := postgres.NewPaymentRepository(dbPool)

	// 6. Supabase auth client + per-user state machines
	sb := supabase.NewClient(cfg.SupabaseUrl, cfg.SupabaseKey)
	registry := authstate.NewRegistry(authstate.Config{
		ProbeTimeout:        cfg.ProbeTimeout,
		SessionFetchTimeout: cfg.SessionFetchTimeout,
		AuthInitTimeout:     cfg.AuthInitTimeout,
		ClientRecordTimeout: cfg.ClientRecordTimeout,
		UnifiedEscalation:   cfg.UnifiedEscalation,
		AdminEmails:         cfg.AdminEmails,
	}, clientRepo, logger.Log)
	adminCache := security.NewAdminSessionCache(cfg.AdminSessionCacheTTL)

	// 7. Photo storage (optional in local dev)
	var photos usecase.PhotoStorage
	if cfg.S3AccessKeyID != "" {
		store, err := storage.NewPhotoStore(context.Background(), storage.Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			logger.Log.Error("Failed to init photo storage", "error", err)
			os.Exit(1)
		}
		photos = store
	} else {
		logger.Log.Warn("Photo storage not configured - dish submission will be unavailable")
	}

	// 8. Email Service
	emailService := email.NewEmailService(cfg)
	if !emailService.IsConfigured() {
		logger.Log.Warn("Email service not fully configured - lead notifications disabled")
	}

	// 9. Setup UseCases
	validate := validator.New()
	validation.RegisterValidators(validate)

	authUC := usecase.NewAuthUsecase(sb, registry, adminCache, cfg.AdminEmails)
	clientUC := usecase.NewClientUsecase(clientRepo, validate)
	packageUC := usecase.NewPackageUsecase(packageRepo, validate)
	dishUC := usecase.NewDishUsecase(dishRepo, clientRepo, photos, validate)
	leadUC := usecase.NewLeadUsecase(leadRepo, emailService, validate)
	paymentUC := usecase.NewPaymentUsecase(paymentRepo)

	// 10. JWKS provider for RS256 token verification
	jwksProvider := supabase.NewJWKSProvider(cfg.SupabaseUrl + "/auth/v1/.well-known/jwks.json")

	// 11. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		AuthUC:       authUC,
		ClientUC:     clientUC,
		PackageUC:    packageUC,
		DishUC:       dishUC,
		LeadUC:       leadUC,
		PaymentUC:    paymentUC,
		Registry:     registry,
		AdminCache:   adminCache,
		JWKSProvider: jwksProvider,
		Supabase:     sb,
		Config:       cfg,
	})

	// 12. Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}
