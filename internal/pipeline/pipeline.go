// Package pipeline orchestrates the recording lifecycle: provider media
// download, durable storage, metadata persistence, and the multi-language
// transcription sweep.
package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/internal/transcription"
)

var (
	// ErrRecordingNotFound means no metadata row exists for the recording SID.
	ErrRecordingNotFound = errors.New("recording not found")
	// ErrNotDownloaded means the recording has no stored audio to transcribe.
	ErrNotDownloaded = errors.New("recording audio not available in storage")
)

// MetadataStore persists recording lifecycle state. Updates are independent
// partial writes with last-write-wins semantics; a concurrent attempt's
// terminal write may be overwritten but never partially merged.
type MetadataStore interface {
	GetBySID(ctx context.Context, sid string) (*models.Recording, error)
	MarkDownloaded(ctx context.Context, sid, storagePath string, fileSize int64) error
	SetTranscriptionStatus(ctx context.Context, sid, status string) error
	SaveTranscription(ctx context.Context, sid string, upd models.TranscriptionUpdate) error
	ListNeedingTranscription(ctx context.Context, limit int) ([]models.Recording, error)
	ListDownloaded(ctx context.Context, limit int) ([]models.Recording, error)
}

// ObjectStore persists opaque audio buffers under namespaced keys.
type ObjectStore interface {
	UploadRecording(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	DownloadRecording(ctx context.Context, key string) ([]byte, error)
}

// MediaFetcher downloads recording audio from the telephony provider.
type MediaFetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// SpeechClient is one transcription attempt against the external
// speech-to-text provider.
type SpeechClient interface {
	Transcribe(ctx context.Context, audio []byte, fileName string, opts transcription.Options) transcription.Result
}
