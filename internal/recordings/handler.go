package recordings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/internal/pipeline"
	"github.com/coldline/backend/pkg/response"
)

// TranscribeRequest is the body for POST /api/recordings/:sid/transcribe.
type TranscribeRequest struct {
	Force bool `json:"force"`
}

// BatchRequest is the body for POST /api/recordings/transcribe-batch.
type BatchRequest struct {
	Limit int  `json:"limit"`
	Force bool `json:"force"`
}

// TranscriptionRunner re-runs transcription for a stored recording.
type TranscriptionRunner interface {
	TranscribeExisting(ctx context.Context, sid string, force bool) (pipeline.Result, error)
}

// BatchRunner sweeps pending recordings through transcription.
type BatchRunner interface {
	Process(ctx context.Context, limit int, force bool) (pipeline.BatchResult, error)
}

// MetadataAccess reads recording rows and removes deleted ones.
type MetadataAccess interface {
	GetBySID(ctx context.Context, sid string) (*models.Recording, error)
	List(ctx context.Context, limit int) ([]models.Recording, error)
	Delete(ctx context.Context, sid string) error
}

// ObjectAccess issues time-limited download URLs for stored recordings
// and removes deleted objects.
type ObjectAccess interface {
	SignedRecordingURL(ctx context.Context, key string, expire time.Duration) (string, error)
	PresignExpire() time.Duration
	DeleteRecording(ctx context.Context, key string) error
}

// Handler exposes the recording management API: listing, transcription
// triggers, and signed download URLs.
type Handler struct {
	repo        MetadataAccess
	transcriber TranscriptionRunner
	batch       BatchRunner
	signer      ObjectAccess
	logger      *zap.Logger
}

// NewHandler creates a recordings API handler.
func NewHandler(repo MetadataAccess, transcriber TranscriptionRunner, batch BatchRunner, signer ObjectAccess, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, transcriber: transcriber, batch: batch, signer: signer, logger: logger}
}

// List handles GET /api/recordings?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	recs, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	if recs == nil {
		recs = []models.Recording{}
	}
	response.OK(c, recs)
}

// Get handles GET /api/recordings/:sid.
func (h *Handler) Get(c *gin.Context) {
	rec := h.getBySID(c)
	if rec == nil {
		return
	}
	response.OK(c, rec)
}

// Transcribe handles POST /api/recordings/:sid/transcribe. The body is
// optional; an empty body means force=false.
func (h *Handler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	sid := c.Param("sid")
	res, err := h.transcriber.TranscribeExisting(c.Request.Context(), sid, req.Force)
	if err != nil {
		h.transcribeError(c, sid, err)
		return
	}
	response.OK(c, res)
}

// GetTranscription handles GET /api/recordings/:sid/transcription. It
// returns the current lifecycle snapshot for any existing recording, so
// callers can watch a pending or processing attempt and read the
// diagnostic error of a failed one; 404 means the recording itself is
// unknown.
func (h *Handler) GetTranscription(c *gin.Context) {
	rec := h.getBySID(c)
	if rec == nil {
		return
	}
	response.OK(c, gin.H{
		"recording_sid":  rec.RecordingSID,
		"status":         rec.TranscriptionStatus,
		"text":           rec.TranscriptionText,
		"language":       rec.TranscriptionLanguage,
		"method":         rec.TranscriptionMethod,
		"error":          rec.TranscriptionError,
		"duration":       rec.TranscriptionDuration,
		"transcribed_at": rec.TranscribedAt,
	})
}

// TranscribeBatch handles POST /api/recordings/transcribe-batch.
func (h *Handler) TranscribeBatch(c *gin.Context) {
	var req BatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	res, err := h.batch.Process(c.Request.Context(), req.Limit, req.Force)
	if err != nil {
		h.logger.Error("batch transcription failed", zap.Error(err))
		response.Internal(c, "batch transcription failed")
		return
	}
	response.OK(c, res)
}

// DownloadURL handles GET /api/recordings/:sid/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	rec := h.getBySID(c)
	if rec == nil {
		return
	}
	if rec.StoragePath == "" {
		response.BadRequest(c, "recording has not been downloaded yet")
		return
	}
	expire := h.signer.PresignExpire()
	url, err := h.signer.SignedRecordingURL(c.Request.Context(), rec.StoragePath, expire)
	if err != nil {
		h.logger.Error("presign recording failed", zap.String("recording_sid", rec.RecordingSID), zap.Error(err))
		response.Internal(c, "failed to sign download url")
		return
	}
	response.OK(c, gin.H{
		"recording_sid": rec.RecordingSID,
		"url":           url,
		"expires_in":    int(expire.Seconds()),
	})
}

// Delete handles DELETE /api/recordings/:sid. The stored audio goes
// first so a failure cannot orphan the object behind a deleted row.
func (h *Handler) Delete(c *gin.Context) {
	rec := h.getBySID(c)
	if rec == nil {
		return
	}
	ctx := c.Request.Context()
	if rec.StoragePath != "" {
		if err := h.signer.DeleteRecording(ctx, rec.StoragePath); err != nil {
			h.logger.Error("delete stored audio failed",
				zap.String("recording_sid", rec.RecordingSID), zap.Error(err))
			response.ServiceUnavailable(c, "failed to delete stored audio")
			return
		}
	}
	if err := h.repo.Delete(ctx, rec.RecordingSID); err != nil {
		h.logger.Error("delete recording failed",
			zap.String("recording_sid", rec.RecordingSID), zap.Error(err))
		response.Internal(c, "failed to delete recording")
		return
	}
	response.OK(c, gin.H{"recording_sid": rec.RecordingSID, "deleted": true})
}

// getBySID loads the recording from the path param, writing the error
// response itself. A nil return means the response is already sent.
func (h *Handler) getBySID(c *gin.Context) *models.Recording {
	sid := c.Param("sid")
	if sid == "" {
		response.BadRequest(c, "recording sid is required")
		return nil
	}
	rec, err := h.repo.GetBySID(c.Request.Context(), sid)
	if err != nil {
		h.logger.Error("get recording failed", zap.String("recording_sid", sid), zap.Error(err))
		response.Internal(c, "failed to load recording")
		return nil
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return nil
	}
	return rec
}

func (h *Handler) transcribeError(c *gin.Context, sid string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRecordingNotFound):
		response.NotFound(c, "recording not found")
	case errors.Is(err, pipeline.ErrNotDownloaded):
		response.BadRequest(c, "recording has not been downloaded yet")
	default:
		var se *pipeline.StorageError
		if errors.As(err, &se) {
			h.logger.Error("fetch stored audio failed", zap.String("recording_sid", sid), zap.Error(err))
			response.ServiceUnavailable(c, "failed to fetch stored audio")
			return
		}
		h.logger.Error("transcription failed", zap.String("recording_sid", sid), zap.Error(err))
		response.Internal(c, "transcription failed")
	}
}
