package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sriharan2222/medlog/internal/audit"
	"github.com/Sriharan2222/medlog/internal/changerequest"
	"github.com/Sriharan2222/medlog/internal/disclosure"
	"github.com/Sriharan2222/medlog/internal/gateway"
	"github.com/Sriharan2222/medlog/internal/iam"
	"github.com/Sriharan2222/medlog/internal/prescription"
	"github.com/Sriharan2222/medlog/pkg/config"
	"github.com/Sriharan2222/medlog/pkg/database"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
)

const (
	serviceName    = "medlog-api"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)

	// Observability
	metrics := monitoring.NewMetricsCollector(serviceName)

	var tracing *monitoring.TracingManager
	if cfg.Tracing.Enabled {
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
			ServiceName:    serviceName,
			ServiceVersion: serviceVersion,
			Environment:    cfg.Tracing.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize tracing")
		}
	}
	monitoringMiddleware := monitoring.NewMonitoringMiddleware(metrics, tracing, appLogger)

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	db.SetTracker(monitoringMiddleware)

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.CreateSchema(ctx)
		cancel()
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to create database schema")
		}
	}

	// Audit sink
	auditSink := audit.NewSink(appLogger, audit.NewRepository(db), metrics,
		cfg.Audit.QueueSize, time.Duration(cfg.Audit.WriteTimeout)*time.Second)

	health := monitoring.NewHealthManager(serviceName, serviceVersion)
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	health.RegisterChecker("audit_queue", monitoring.NewQueueHealthChecker(auditSink.Depth))

	// Repositories
	userRepo := iam.NewUserRepository(db, appLogger)
	prescriptionRepo := prescription.NewRepository(db, appLogger)
	changeRequestRepo := changerequest.NewRepository(db, appLogger)
	disclosureRepo := disclosure.NewRepository(db, appLogger)

	// Services
	tokens := iam.NewTokenIssuer(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	iamService := iam.NewService(appLogger, userRepo, iam.NewPasswordManager(), tokens, auditSink, metrics)
	prescriptionService := prescription.NewService(appLogger, prescriptionRepo, userRepo, auditSink, metrics)
	changeRequestService := changerequest.NewService(appLogger, changeRequestRepo, userRepo, auditSink, metrics)
	disclosureService := disclosure.NewService(appLogger, disclosureRepo, userRepo,
		disclosure.NewPNGRenderer(cfg.Public.QRSize), auditSink, metrics, cfg.Public.FrontendURL)

	// HTTP
	gatewayService := gateway.NewService(cfg, gateway.NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer), appLogger, gateway.Options{
		Monitoring: monitoringMiddleware,
		Metrics:    metrics,
		Health:     health,
	})

	routes := gatewayService.Routes()
	iam.NewHandlers(iamService, appLogger).RegisterRoutes(routes)
	prescription.NewHandlers(prescriptionService, appLogger).RegisterRoutes(routes)
	changerequest.NewHandlers(changeRequestService, appLogger).RegisterRoutes(routes)
	disclosure.NewHandlers(disclosureService, appLogger).RegisterRoutes(routes)

	// Start the server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- gatewayService.Start()
	}()

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.WithField("signal", sig.String()).Info("Shutting down MedLog API...")
	case err := <-serverErr:
		if err != nil {
			appLogger.WithError(err).Error("Server stopped unexpectedly")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := gatewayService.Stop(ctx); err != nil {
		appLogger.WithError(err).Error("Failed to shutdown server gracefully")
	}

	// Drain pending audit entries before the pool closes
	auditSink.Close()

	if err := tracing.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Warn("Failed to flush traces")
	}

	appLogger.Info("MedLog API stopped")
}
