package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/pkg/pacer"
)

// DefaultBatchLimit caps a batch run when the caller does not specify one.
const DefaultBatchLimit = 5

// RecordingOutcome is one recording's result within a batch run.
type RecordingOutcome struct {
	RecordingSID string `json:"recording_sid"`
	Success      bool   `json:"success"`
	TextLength   int    `json:"text_length"`
	Err          string `json:"error,omitempty"`
}

// BatchResult summarizes a batch transcription run.
type BatchResult struct {
	Processed  int                `json:"processed"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []RecordingOutcome `json:"results"`
}

// Batch iterates over pending recordings and transcribes them one at a
// time, paced by a fixed-interval gate to respect provider rate limits.
type Batch struct {
	meta        MetadataStore
	transcriber *Transcriber
	gate        *pacer.Gate
	logger      *zap.Logger
}

// NewBatch creates a batch coordinator.
func NewBatch(meta MetadataStore, transcriber *Transcriber, gate *pacer.Gate, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{meta: meta, transcriber: transcriber, gate: gate, logger: logger}
}

// Process selects candidate recordings and transcribes them sequentially.
// With force, every downloaded recording (newest first) is re-transcribed;
// otherwise only downloaded recordings that still lack text. One
// recording's failure never aborts the batch.
func (b *Batch) Process(ctx context.Context, limit int, force bool) (BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	var (
		recs []models.Recording
		err  error
	)
	if force {
		recs, err = b.meta.ListDownloaded(ctx, limit)
	} else {
		recs, err = b.meta.ListNeedingTranscription(ctx, limit)
	}
	if err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	for _, rec := range recs {
		if err := b.gate.Wait(ctx); err != nil {
			return out, err
		}

		b.logger.Info("batch transcribing", zap.String("recording_sid", rec.RecordingSID))
		outcome := RecordingOutcome{RecordingSID: rec.RecordingSID}

		res, err := b.transcriber.TranscribeExisting(ctx, rec.RecordingSID, force)
		switch {
		case err != nil:
			outcome.Err = err.Error()
		default:
			outcome.Success = res.Success
			outcome.TextLength = len(res.Text)
			outcome.Err = res.Err
		}

		out.Results = append(out.Results, outcome)
		out.Processed++
		if outcome.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	return out, nil
}
