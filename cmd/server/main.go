// Package main runs the dialer backend HTTP server with an embedded
// recording download worker and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coldline/backend/config"
	"github.com/coldline/backend/internal/auth"
	"github.com/coldline/backend/internal/calls"
	"github.com/coldline/backend/internal/middleware"
	"github.com/coldline/backend/internal/pipeline"
	"github.com/coldline/backend/internal/recordings"
	"github.com/coldline/backend/internal/telephony"
	"github.com/coldline/backend/internal/transcription"
	"github.com/coldline/backend/internal/worker"
	"github.com/coldline/backend/pkg/database"
	"github.com/coldline/backend/pkg/pacer"
	"github.com/coldline/backend/pkg/queue"
	"github.com/coldline/backend/pkg/redis"
	"github.com/coldline/backend/pkg/response"
	"github.com/coldline/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireSeconds: cfg.AWS.PresignExpireSeconds,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	speechClient, err := transcription.NewClient(transcription.Config{
		Endpoint: cfg.Transcription.Endpoint,
		APIKey:   cfg.Transcription.APIKey,
		Model:    cfg.Transcription.Model,
		Timeout:  cfg.Transcription.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("transcription", zap.Error(err))
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	if err := authRepo.EnsureDefaultAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email); err != nil {
		logger.Warn("seed default admin failed", zap.Error(err))
	}
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Recording pipeline
	recordingRepo := recordings.NewRepository(pool)
	callRepo := calls.NewRepository(pool)
	mediaClient := telephony.NewMediaClient(telephony.Credentials{
		AccountSID: cfg.Telephony.AccountSID,
		AuthToken:  cfg.Telephony.AuthToken,
	}, logger)
	transcriber := pipeline.NewTranscriber(speechClient, recordingRepo, s3Client, cfg.Transcription.Languages, logger)
	downloader := pipeline.NewDownloader(mediaClient, s3Client, recordingRepo, transcriber, cfg.Transcription.MaxConcurrent, logger)
	batch := pipeline.NewBatch(recordingRepo, transcriber, pacer.NewGate(cfg.Transcription.BatchInterval), logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	recordingWebhook := recordings.NewWebhookHandler(recordingRepo, callRepo, jobQueue, logger)
	recordingHandler := recordings.NewHandler(recordingRepo, transcriber, batch, s3Client, logger)
	recordingProcessor := worker.NewRecordingProcessor(downloader, callRepo, s3Client, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Webhooks (no JWT; the provider sends either GET or POST)
	router.Any("/webhooks/recording-status", recordingWebhook.RecordingStatus)

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:sid", recordingHandler.Get)
		api.GET("/recordings/:sid/transcription", recordingHandler.GetTranscription)
		api.GET("/recordings/:sid/download-url", recordingHandler.DownloadURL)
		api.POST("/recordings/:sid/transcribe", recordingHandler.Transcribe)
		api.POST("/recordings/transcribe-batch", recordingHandler.TranscribeBatch)
		api.DELETE("/recordings/:sid", recordingHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (recording download and transcription)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go recordingProcessor.Run(workerCtx)
	logger.Info("recording worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	downloader.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
