package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/api"
	"github.com/jgarciait/aqsign-demo-sub001/internal/config"
	"github.com/jgarciait/aqsign-demo-sub001/internal/db"
	"github.com/jgarciait/aqsign-demo-sub001/internal/pdf"
	"github.com/jgarciait/aqsign-demo-sub001/internal/services"
	"github.com/jgarciait/aqsign-demo-sub001/internal/storage"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/logger"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/metrics"
)

func main() {
	cfg := loadConfig()

	zapLogger, err := logger.NewLogger(cfg.Logging.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	database, err := db.Initialize(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	blobs, err := storage.NewLocalStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	metricsCollector := metrics.NewMetricsCollector()

	documentService := services.NewDocumentService(database, blobs, zapLogger, metricsCollector)
	annotationService := services.NewAnnotationService(database, documentService, zapLogger)
	signatureService := services.NewSignatureService(database, documentService, zapLogger, metricsCollector)
	compositor := pdf.NewCompositor(zapLogger)
	renderService := services.NewRenderService(documentService, annotationService, signatureService, compositor, zapLogger, metricsCollector)

	router := api.NewRouter(zapLogger, metricsCollector, documentService, annotationService, signatureService, renderService)
	router.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}

func loadConfig() *config.Configuration {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		return cfg
	}
	return config.InitializeDefaultConfig()
}
