package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coldline/backend/internal/telephony"
	"github.com/coldline/backend/pkg/storage"
)

// transcribeTaskTimeout bounds one detached transcription task: the full
// sweep is at most 1 auto + 3 hinted attempts of 60s each.
const transcribeTaskTimeout = 5 * time.Minute

// DownloadResult describes where a fetched recording was persisted.
type DownloadResult struct {
	StoragePath string `json:"storage_path"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
}

// Downloader fetches recording audio from the telephony provider, persists
// it to the object store, records completion, and hands the bytes to the
// transcription orchestrator without blocking its caller.
type Downloader struct {
	media       MediaFetcher
	store       ObjectStore
	meta        MetadataStore
	transcriber *Transcriber
	logger      *zap.Logger

	slots chan struct{}
	wg    sync.WaitGroup
	now   func() time.Time
}

// NewDownloader creates a download orchestrator. maxConcurrent bounds the
// fire-and-forget transcription tasks it may have in flight at once.
func NewDownloader(media MediaFetcher, store ObjectStore, meta MetadataStore, transcriber *Transcriber, maxConcurrent int, logger *zap.Logger) *Downloader {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		media:       media,
		store:       store,
		meta:        meta,
		transcriber: transcriber,
		logger:      logger,
		slots:       make(chan struct{}, maxConcurrent),
		now:         time.Now,
	}
}

// DownloadAndPersist fetches the recording, stores it, and marks the
// metadata row downloaded. On success it spawns transcription in the
// background; a transcription failure never fails the download. There is
// no internal retry; a failed download leaves the row pending for the
// batch path.
func (d *Downloader) DownloadAndPersist(ctx context.Context, sid, sourceURL, ownerID string) (DownloadResult, error) {
	audio, err := d.media.Fetch(ctx, sourceURL)
	if err != nil {
		var se *telephony.StatusError
		if errors.As(err, &se) {
			return DownloadResult{}, &DownloadError{RecordingSID: sid, StatusCode: se.StatusCode, Err: err}
		}
		return DownloadResult{}, &DownloadError{RecordingSID: sid, Err: err}
	}

	key := storage.RecordingKey(ownerID, sid, d.now())
	path, err := d.store.UploadRecording(ctx, key, "audio/wav", bytes.NewReader(audio), int64(len(audio)))
	if err != nil {
		return DownloadResult{}, &StorageError{RecordingSID: sid, Err: err}
	}

	size := int64(len(audio))
	if err := d.meta.MarkDownloaded(ctx, sid, path, size); err != nil {
		// Bytes are stored but the row still says pending; the batch
		// re-selection query tolerates this window.
		return DownloadResult{}, fmt.Errorf("record download result for %s: %w", sid, err)
	}

	fileName := storage.FileNameFromKey(path)
	d.logger.Info("recording downloaded",
		zap.String("recording_sid", sid), zap.String("storage_path", path), zap.Int64("bytes", size))

	d.spawnTranscription(sid, audio, fileName)

	return DownloadResult{StoragePath: path, FileName: fileName, FileSize: size}, nil
}

// spawnTranscription runs the sweep on a detached context with its own
// error boundary, bounded by the slot semaphore so a burst of completed
// recordings cannot pile up unbounded concurrent provider calls.
func (d *Downloader) spawnTranscription(sid string, audio []byte, fileName string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("transcription task panicked",
					zap.String("recording_sid", sid), zap.Any("panic", r))
			}
		}()

		d.slots <- struct{}{}
		defer func() { <-d.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), transcribeTaskTimeout)
		defer cancel()

		res := d.transcriber.Transcribe(ctx, sid, audio, fileName)
		if res.Success {
			d.logger.Info("auto-transcription completed",
				zap.String("recording_sid", sid), zap.String("method", res.Method), zap.String("language", res.Language))
		} else {
			d.logger.Warn("auto-transcription failed",
				zap.String("recording_sid", sid), zap.String("error", res.Err))
		}
	}()
}

// Wait blocks until all in-flight transcription tasks finish. Used on
// shutdown.
func (d *Downloader) Wait() { d.wg.Wait() }
