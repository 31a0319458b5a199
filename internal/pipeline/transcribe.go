package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/internal/transcription"
	"github.com/coldline/backend/pkg/storage"
)

// DefaultLanguages is the explicit-hint sweep order used when none is
// configured: Estonian, English, Russian.
var DefaultLanguages = []string{"et", "en", "ru"}

// Result is the outcome of one transcription orchestration, accurate for
// the immediate caller even if the durable write lagged.
type Result struct {
	Success         bool    `json:"success"`
	Text            string  `json:"text,omitempty"`
	Language        string  `json:"language,omitempty"`
	Method          string  `json:"method,omitempty"`
	DurationSeconds float64 `json:"duration,omitempty"`
	Err             string  `json:"error,omitempty"`
	// AlreadyTranscribed is set when an existing completed transcription was
	// returned without calling the speech provider.
	AlreadyTranscribed bool `json:"already_transcribed,omitempty"`
}

// Transcriber drives the multi-language transcription strategy and its
// lifecycle bookkeeping for one recording at a time.
type Transcriber struct {
	speech    SpeechClient
	meta      MetadataStore
	store     ObjectStore
	languages []string
	logger    *zap.Logger
}

// NewTranscriber creates a transcription orchestrator. languages is the
// ordered explicit-hint sweep tried after auto-detect.
func NewTranscriber(speech SpeechClient, meta MetadataStore, store ObjectStore, languages []string, logger *zap.Logger) *Transcriber {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{speech: speech, meta: meta, store: store, languages: languages, logger: logger}
}

// Transcribe runs the language sweep over in-memory audio and writes the
// terminal outcome to the metadata store exactly once.
//
// Strategy: auto-detect first (cheapest and usually right), then each
// candidate language in order, stopping at the first non-empty text. If
// every attempt comes back empty the auto-detect attempt is persisted as
// the fallback so its diagnostics are not lost.
func (t *Transcriber) Transcribe(ctx context.Context, sid string, audio []byte, fileName string) Result {
	if len(audio) == 0 {
		res := Result{Method: models.TranscriptionMethodError, Err: "empty audio buffer"}
		t.persist(ctx, sid, res, transcription.Result{})
		return res
	}

	// Advisory only: concurrent observers see an attempt is underway, but
	// nothing locks the row; the later terminal write wins.
	if err := t.meta.SetTranscriptionStatus(ctx, sid, models.TranscriptionStatusProcessing); err != nil {
		t.logger.Warn("set processing status failed", zap.String("recording_sid", sid), zap.Error(err))
	}

	opts := transcription.Options{
		ResponseFormat: "json",
		Temperature:    0.0,
		TemperatureSet: true,
	}

	auto := t.speech.Transcribe(ctx, audio, fileName, opts)
	if usable(auto) {
		res := Result{
			Success:         true,
			Text:            auto.Text,
			Language:        auto.Language,
			Method:          models.TranscriptionMethodAuto,
			DurationSeconds: auto.DurationSeconds,
		}
		t.persist(ctx, sid, res, auto)
		return res
	}

	for _, lang := range t.languages {
		t.logger.Debug("trying language hint", zap.String("recording_sid", sid), zap.String("language", lang))
		opts.Language = lang
		attempt := t.speech.Transcribe(ctx, audio, fileName, opts)
		if !usable(attempt) {
			continue
		}
		language := attempt.Language
		if language == "" {
			language = lang
		}
		res := Result{
			Success:         true,
			Text:            attempt.Text,
			Language:        language,
			Method:          models.TranscriptionMethodManual,
			DurationSeconds: attempt.DurationSeconds,
		}
		t.persist(ctx, sid, res, attempt)
		return res
	}

	// Exhausted: keep the auto-detect attempt's diagnostics verbatim.
	errMsg := auto.Err
	if errMsg == "" {
		errMsg = "transcription failed or returned empty result"
	}
	res := Result{
		Text:            auto.Text,
		Language:        auto.Language,
		Method:          models.TranscriptionMethodFallback,
		DurationSeconds: auto.DurationSeconds,
		Err:             errMsg,
	}
	t.persist(ctx, sid, res, auto)
	return res
}

// TranscribeExisting re-runs transcription for a stored recording. When the
// record is already completed and force is false it short-circuits without
// touching the speech provider.
func (t *Transcriber) TranscribeExisting(ctx context.Context, sid string, force bool) (Result, error) {
	rec, err := t.meta.GetBySID(ctx, sid)
	if err != nil {
		return Result{}, err
	}
	if rec == nil {
		return Result{}, ErrRecordingNotFound
	}

	if !force && rec.Transcribed() {
		return Result{
			Success:            true,
			Text:               rec.TranscriptionText,
			Language:           rec.TranscriptionLanguage,
			Method:             rec.TranscriptionMethod,
			DurationSeconds:    rec.TranscriptionDuration,
			AlreadyTranscribed: true,
		}, nil
	}

	if rec.StoragePath == "" {
		return Result{}, ErrNotDownloaded
	}

	audio, err := t.store.DownloadRecording(ctx, rec.StoragePath)
	if err != nil {
		return Result{}, &StorageError{RecordingSID: sid, Err: err}
	}

	return t.Transcribe(ctx, sid, audio, storage.FileNameFromKey(rec.StoragePath)), nil
}

// persist writes the terminal outcome. A metadata failure is logged and
// does not change the in-memory result.
func (t *Transcriber) persist(ctx context.Context, sid string, res Result, attempt transcription.Result) {
	status := models.TranscriptionStatusFailed
	if res.Success && strings.TrimSpace(res.Text) != "" {
		status = models.TranscriptionStatusCompleted
	}
	upd := models.TranscriptionUpdate{
		Status:          status,
		Text:            res.Text,
		Language:        res.Language,
		Method:          res.Method,
		Error:           res.Err,
		DurationSeconds: res.DurationSeconds,
		Segments:        attempt.Segments,
		Words:           attempt.Words,
	}
	if err := t.meta.SaveTranscription(ctx, sid, upd); err != nil {
		t.logger.Error("save transcription failed",
			zap.String("recording_sid", sid), zap.String("status", status), zap.Error(err))
	}
}

func usable(r transcription.Result) bool {
	return r.Success && strings.TrimSpace(r.Text) != ""
}
