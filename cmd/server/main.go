package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/adapter"
	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/internal/config"
	flashsaleEvents "github.com/flashmart/service-flashsale/internal/events"
	"github.com/flashmart/service-flashsale/internal/handler"
	"github.com/flashmart/service-flashsale/internal/repository"
	"github.com/flashmart/service-flashsale/internal/scheduler"
	"github.com/flashmart/service-flashsale/pkg/auth"
	"github.com/flashmart/service-flashsale/pkg/database"
	"github.com/flashmart/service-flashsale/pkg/health"
	"github.com/flashmart/service-flashsale/pkg/kafka"
	"github.com/flashmart/service-flashsale/pkg/logger"
	"github.com/flashmart/service-flashsale/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-flashsale")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-flashsale",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	db, err := database.Connect(dbConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.CampaignModel{},
			&repository.StockEntryModel{},
			&repository.ReservationModel{},
			&repository.UsageRecordModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		dbURL := dbConfig.DatabaseURL()
		if err := database.RunMigrations(dbURL, "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Initialize catalog adapter (mock for development)
	catalogAdapter := adapter.NewMockCatalogAdapter(zapLogger)

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	stockRepo := repository.NewStockRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	// Initialize application services
	reservationService := application.NewReservationService(
		campaignRepo,
		stockRepo,
		reservationRepo,
		usageRepo,
		kafkaProducer,
		cfg.ReservationTTL,
		zapLogger,
	)
	campaignService := application.NewCampaignService(
		campaignRepo,
		stockRepo,
		reservationRepo,
		catalogAdapter,
		zapLogger,
	)

	// Initialize Kafka consumer for order events
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + "flashsale-service"
	orderConsumer := flashsaleEvents.NewOrderEventConsumer(
		cfg.KafkaConfig.Brokers,
		consumerGroupID,
		reservationService,
		zapLogger,
	)
	defer orderConsumer.Close()

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		zapLogger.Info("starting order event consumer")
		if err := orderConsumer.Start(workerCtx); err != nil {
			if workerCtx.Err() == nil {
				zapLogger.Error("order event consumer failed", zap.Error(err))
			}
		}
	}()

	activationScheduler := scheduler.NewActivationScheduler(campaignRepo, stockRepo, kafkaProducer, zapLogger)
	go func() {
		zapLogger.Info("starting campaign activation scheduler",
			zap.Duration("interval", cfg.SchedulerConfig.ActivationInterval),
		)
		activationScheduler.Start(workerCtx, cfg.SchedulerConfig.ActivationInterval)
	}()

	sweeper := scheduler.NewSweeper(reservationService, zapLogger)
	go func() {
		zapLogger.Info("starting expired reservation sweeper",
			zap.Duration("interval", cfg.SchedulerConfig.SweepInterval),
		)
		sweeper.Start(workerCtx, cfg.SchedulerConfig.SweepInterval)
	}()

	// Initialize HTTP handlers
	reservationHandler := handler.NewReservationHandler(reservationService)
	campaignHandler := handler.NewCampaignHandler(campaignService)
	adminHandler := handler.NewAdminHandler(campaignService, reservationService, activationScheduler)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-flashsale")
	healthHandler.RegisterRoutes(router)

	// Expose Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register API routes
	apiV1 := router.Group("/api/v1")
	campaignHandler.RegisterRoutes(apiV1)
	reservationHandler.RegisterRoutes(apiV1, jwtManager)
	adminHandler.RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-flashsale...")

	// Stop background workers
	workerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-flashsale stopped")
}
