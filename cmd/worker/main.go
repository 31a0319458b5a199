// Package main runs the standalone recording download worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coldline/backend/config"
	"github.com/coldline/backend/internal/calls"
	"github.com/coldline/backend/internal/pipeline"
	"github.com/coldline/backend/internal/recordings"
	"github.com/coldline/backend/internal/telephony"
	"github.com/coldline/backend/internal/transcription"
	"github.com/coldline/backend/internal/worker"
	"github.com/coldline/backend/pkg/database"
	"github.com/coldline/backend/pkg/queue"
	"github.com/coldline/backend/pkg/redis"
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

	recordingRepo := recordings.NewRepository(pool)
	callRepo := calls.NewRepository(pool)
	mediaClient := telephony.NewMediaClient(telephony.Credentials{
		AccountSID: cfg.Telephony.AccountSID,
		AuthToken:  cfg.Telephony.AuthToken,
	}, logger)
	transcriber := pipeline.NewTranscriber(speechClient, recordingRepo, s3Client, cfg.Transcription.Languages, logger)
	downloader := pipeline.NewDownloader(mediaClient, s3Client, recordingRepo, transcriber, cfg.Transcription.MaxConcurrent, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewRecordingProcessor(downloader, callRepo, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	downloader.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
