package recordings

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/pkg/queue"
)

// twimlAck is the minimal acknowledgment the provider expects; it only
// interprets the HTTP status, never the body.
const twimlAck = "<Response></Response>"

// MetadataCreator inserts the recording row observed in a callback.
type MetadataCreator interface {
	Create(ctx context.Context, rec *models.Recording) error
}

// CallLookup resolves a call SID to its call_history row for owner
// attribution.
type CallLookup interface {
	GetBySID(ctx context.Context, callSID string) (*models.Call, error)
}

// DownloadQueue enqueues recording download jobs.
type DownloadQueue interface {
	EnqueueRecordingDownload(ctx context.Context, payload queue.RecordingDownloadPayload) error
}

// WebhookHandler handles the telephony provider's recording status
// callback. The provider may deliver it as GET (query params) or POST
// (form body).
type WebhookHandler struct {
	repo   MetadataCreator
	calls  CallLookup
	queue  DownloadQueue
	logger *zap.Logger
}

// NewWebhookHandler creates a recording status webhook handler.
func NewWebhookHandler(repo MetadataCreator, callLookup CallLookup, q DownloadQueue, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{repo: repo, calls: callLookup, queue: q, logger: logger}
}

// RecordingStatus handles ANY /webhooks/recording-status. On a completed
// recording it persists metadata and enqueues the download; every outcome
// is acknowledged with 200 and empty TwiML so the provider never retries
// against an internal failure we will recover via the batch path.
func (h *WebhookHandler) RecordingStatus(c *gin.Context) {
	// FormValue reads query params and the POST form alike.
	recordingSID := c.Request.FormValue("RecordingSid")
	callSID := c.Request.FormValue("CallSid")
	sourceURL := c.Request.FormValue("RecordingUrl")
	status := c.Request.FormValue("RecordingStatus")
	duration, _ := strconv.Atoi(c.Request.FormValue("RecordingDuration"))
	channels, _ := strconv.Atoi(c.Request.FormValue("RecordingChannels"))
	source := c.Request.FormValue("RecordingSource")

	if status != "completed" || sourceURL == "" || recordingSID == "" {
		h.logger.Debug("recording status ignored",
			zap.String("recording_sid", recordingSID), zap.String("status", status))
		ack(c)
		return
	}

	ctx := c.Request.Context()
	rec := &models.Recording{
		RecordingSID:    recordingSID,
		CallSID:         callSID,
		SourceURL:       sourceURL,
		DurationSeconds: duration,
		Channels:        max(channels, 1),
		Source:          source,
	}

	ownerID := ""
	if callSID != "" {
		if call, err := h.calls.GetBySID(ctx, callSID); err == nil && call != nil && call.UserID != nil {
			rec.OwnerID = call.UserID
			ownerID = call.UserID.String()
		}
	}

	if err := h.repo.Create(ctx, rec); err != nil {
		h.logger.Error("save recording metadata failed",
			zap.String("recording_sid", recordingSID), zap.Error(err))
		ack(c)
		return
	}

	if err := h.queue.EnqueueRecordingDownload(ctx, queue.RecordingDownloadPayload{
		RecordingSID: recordingSID,
		CallSID:      callSID,
		SourceURL:    sourceURL,
		OwnerID:      ownerID,
	}); err != nil {
		h.logger.Error("enqueue recording download failed",
			zap.String("recording_sid", recordingSID), zap.Error(err))
		ack(c)
		return
	}

	h.logger.Info("recording status processed",
		zap.String("recording_sid", recordingSID), zap.String("call_sid", callSID), zap.Int("duration", duration))
	ack(c)
}

func ack(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml", []byte(twimlAck))
}
