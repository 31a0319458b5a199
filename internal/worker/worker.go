// Package worker consumes recording download jobs from the queue and
// drives the download orchestrator.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coldline/backend/internal/calls"
	"github.com/coldline/backend/internal/pipeline"
	"github.com/coldline/backend/pkg/queue"
	"github.com/coldline/backend/pkg/storage"
)

// RecordingProcessor processes recording download jobs: fetch from the
// telephony provider, persist to S3, update metadata, kick off
// transcription, and annotate call history.
type RecordingProcessor struct {
	downloader *pipeline.Downloader
	callRepo   *calls.Repository
	s3         *storage.S3
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewRecordingProcessor creates a recording download processor.
func NewRecordingProcessor(downloader *pipeline.Downloader, callRepo *calls.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *RecordingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingProcessor{downloader: downloader, callRepo: callRepo, s3: s3, queue: q, logger: logger}
}

// Process executes one recording download job.
func (p *RecordingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingDownload {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingDownloadPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	result, err := p.downloader.DownloadAndPersist(ctx, payload.RecordingSID, payload.SourceURL, payload.OwnerID)
	if err != nil {
		var de *pipeline.DownloadError
		if errors.As(err, &de) && de.StatusCode >= 400 && de.StatusCode < 500 {
			// Auth/URL problems rarely heal on retry; log loudly so the
			// job is traceable once the retry budget moves it to the DLQ.
			p.logger.Error("download rejected by provider",
				zap.String("recording_sid", payload.RecordingSID), zap.Int("status", de.StatusCode))
		}
		return err
	}

	p.updateCallHistory(ctx, payload.CallSID, result.StoragePath)

	p.logger.Info("recording download job completed",
		zap.String("recording_sid", payload.RecordingSID), zap.String("storage_path", result.StoragePath))
	return nil
}

// updateCallHistory links the stored recording back to its call via a
// signed URL. Best effort: the recording row is already durable.
func (p *RecordingProcessor) updateCallHistory(ctx context.Context, callSID, storagePath string) {
	if callSID == "" {
		return
	}
	call, err := p.callRepo.GetBySID(ctx, callSID)
	if err != nil || call == nil {
		return
	}
	url, err := p.s3.SignedRecordingURL(ctx, storagePath, p.s3.PresignExpire())
	if err != nil {
		p.logger.Warn("presign recording url failed", zap.String("call_sid", callSID), zap.Error(err))
		return
	}
	if err := p.callRepo.SetRecordingURL(ctx, call.ID, url); err != nil {
		p.logger.Warn("update call history failed", zap.String("call_sid", callSID), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *RecordingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recording worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
