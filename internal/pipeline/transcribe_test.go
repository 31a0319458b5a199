package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/internal/transcription"
)

type fakeMeta struct {
	mu       sync.Mutex
	recs     map[string]*models.Recording
	statuses []string
	saves    []models.TranscriptionUpdate
	saveErr  error

	needing    []models.Recording
	downloaded []models.Recording

	markedSID  string
	markedPath string
	markedSize int64
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{recs: make(map[string]*models.Recording)}
}

func (m *fakeMeta) GetBySID(_ context.Context, sid string) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[sid], nil
}

// The write methods mirror the repository's partial-update semantics on
// the in-memory rows, so state-based tests observe what the database
// would hold.

func (m *fakeMeta) MarkDownloaded(_ context.Context, sid, storagePath string, fileSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedSID, m.markedPath, m.markedSize = sid, storagePath, fileSize
	if rec, ok := m.recs[sid]; ok {
		rec.StoragePath = storagePath
		rec.FileSize = fileSize
		rec.DownloadStatus = models.DownloadStatusCompleted
	}
	return nil
}

func (m *fakeMeta) SetTranscriptionStatus(_ context.Context, sid, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if rec, ok := m.recs[sid]; ok {
		rec.TranscriptionStatus = status
	}
	return nil
}

func (m *fakeMeta) SaveTranscription(_ context.Context, sid string, upd models.TranscriptionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, upd)
	if m.saveErr != nil {
		return m.saveErr
	}
	if rec, ok := m.recs[sid]; ok {
		rec.TranscriptionStatus = upd.Status
		rec.TranscriptionText = upd.Text
		rec.TranscriptionLanguage = upd.Language
		rec.TranscriptionMethod = upd.Method
		rec.TranscriptionError = upd.Error
		rec.TranscriptionDuration = upd.DurationSeconds
		now := time.Now()
		rec.TranscribedAt = &now
	}
	return nil
}

func (m *fakeMeta) ListNeedingTranscription(_ context.Context, limit int) ([]models.Recording, error) {
	if limit < len(m.needing) {
		return m.needing[:limit], nil
	}
	return m.needing, nil
}

func (m *fakeMeta) ListDownloaded(_ context.Context, limit int) ([]models.Recording, error) {
	if limit < len(m.downloaded) {
		return m.downloaded[:limit], nil
	}
	return m.downloaded, nil
}

func (m *fakeMeta) savedUpdates() []models.TranscriptionUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TranscriptionUpdate, len(m.saves))
	copy(out, m.saves)
	return out
}

type fakeStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploadErr   error
	downloadErr error

	uploadedKey  string
	uploadedType string
	uploadedSize int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) UploadRecording(_ context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects[key] = data
	s.uploadedKey, s.uploadedType, s.uploadedSize = key, contentType, size
	return key, nil
}

func (s *fakeStore) DownloadRecording(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return data, nil
}

// fakeSpeech returns a scripted result per language hint ("" is the
// auto-detect attempt) and records every call's options.
type fakeSpeech struct {
	mu      sync.Mutex
	results map[string]transcription.Result
	calls   []transcription.Options
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{results: make(map[string]transcription.Result)}
}

func (s *fakeSpeech) Transcribe(_ context.Context, _ []byte, _ string, opts transcription.Options) transcription.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)
	return s.results[opts.Language]
}

func (s *fakeSpeech) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSpeech) callOptions() []transcription.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcription.Options, len(s.calls))
	copy(out, s.calls)
	return out
}

func newTestTranscriber(speech SpeechClient, meta *fakeMeta, store *fakeStore) *Transcriber {
	return NewTranscriber(speech, meta, store, nil, nil)
}

func TestTranscribeAutoDetectSuccess(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "hello world", Language: "en", DurationSeconds: 12.5}
	meta := newFakeMeta()
	tr := newTestTranscriber(speech, meta, newFakeStore())

	res := tr.Transcribe(context.Background(), "RE1", []byte("audio"), "recording.wav")

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Method != models.TranscriptionMethodAuto {
		t.Errorf("expected method auto, got %q", res.Method)
	}
	if res.Text != "hello world" || res.Language != "en" {
		t.Errorf("unexpected result: %+v", res)
	}
	if speech.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", speech.callCount())
	}

	saves := meta.savedUpdates()
	if len(saves) != 1 {
		t.Fatalf("expected exactly 1 terminal write, got %d", len(saves))
	}
	if saves[0].Status != models.TranscriptionStatusCompleted {
		t.Errorf("expected completed status, got %q", saves[0].Status)
	}
	if len(meta.statuses) != 1 || meta.statuses[0] != models.TranscriptionStatusProcessing {
		t.Errorf("expected one processing status write, got %v", meta.statuses)
	}
}

func TestTranscribeAutoAttemptOptions(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "ok"}
	tr := newTestTranscriber(speech, newFakeMeta(), newFakeStore())

	tr.Transcribe(context.Background(), "RE1", []byte("audio"), "recording.wav")

	opts := speech.callOptions()[0]
	if opts.Language != "" {
		t.Errorf("auto attempt must not carry a language hint, got %q", opts.Language)
	}
	if opts.ResponseFormat != "json" {
		t.Errorf("expected json response format, got %q", opts.ResponseFormat)
	}
	if !opts.TemperatureSet || opts.Temperature != 0.0 {
		t.Errorf("expected temperature pinned to 0.0, got %+v", opts)
	}
}

func TestTranscribeLanguageSweepOrder(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "   "} // blank, not usable
	speech.results["et"] = transcription.Result{Err: "no speech detected"}
	speech.results["en"] = transcription.Result{Success: true, Text: ""}
	speech.results["ru"] = transcription.Result{Success: true, Text: "привет"}
	meta := newFakeMeta()
	tr := newTestTranscriber(speech, meta, newFakeStore())

	res := tr.Transcribe(context.Background(), "RE2", []byte("audio"), "recording.wav")

	if !res.Success || res.Text != "привет" {
		t.Fatalf("expected third candidate to win, got %+v", res)
	}
	if res.Method != models.TranscriptionMethodManual {
		t.Errorf("expected method manual, got %q", res.Method)
	}
	if res.Language != "ru" {
		t.Errorf("expected hint language recorded when provider omits one, got %q", res.Language)
	}

	var langs []string
	for _, o := range speech.callOptions() {
		langs = append(langs, o.Language)
	}
	want := []string{"", "et", "en", "ru"}
	if len(langs) != len(want) {
		t.Fatalf("expected attempts %v, got %v", want, langs)
	}
	for i := range want {
		if langs[i] != want[i] {
			t.Fatalf("expected attempts %v, got %v", want, langs)
		}
	}
}

func TestTranscribeExhaustedKeepsAutoDiagnostics(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Err: "provider status 500: boom"}
	meta := newFakeMeta()
	tr := newTestTranscriber(speech, meta, newFakeStore())

	res := tr.Transcribe(context.Background(), "RE3", []byte("audio"), "recording.wav")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Method != models.TranscriptionMethodFallback {
		t.Errorf("expected method fallback, got %q", res.Method)
	}
	if res.Err != "provider status 500: boom" {
		t.Errorf("auto attempt error must be preserved verbatim, got %q", res.Err)
	}
	if speech.callCount() != 4 {
		t.Errorf("expected auto plus three hints, got %d calls", speech.callCount())
	}
	saves := meta.savedUpdates()
	if len(saves) != 1 || saves[0].Status != models.TranscriptionStatusFailed {
		t.Fatalf("expected one failed write, got %+v", saves)
	}
}

func TestTranscribeExhaustedDefaultError(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: ""}
	tr := newTestTranscriber(speech, newFakeMeta(), newFakeStore())

	res := tr.Transcribe(context.Background(), "RE4", []byte("audio"), "recording.wav")

	if res.Err != "transcription failed or returned empty result" {
		t.Errorf("expected default error message, got %q", res.Err)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	speech := newFakeSpeech()
	meta := newFakeMeta()
	tr := newTestTranscriber(speech, meta, newFakeStore())

	res := tr.Transcribe(context.Background(), "RE5", nil, "recording.wav")

	if res.Success {
		t.Fatal("expected failure for empty audio")
	}
	if res.Method != models.TranscriptionMethodError {
		t.Errorf("expected method error, got %q", res.Method)
	}
	if speech.callCount() != 0 {
		t.Errorf("provider must not be called for empty audio, got %d calls", speech.callCount())
	}
	if len(meta.savedUpdates()) != 1 {
		t.Errorf("expected the failure to be persisted")
	}
}

func TestTranscribeExistingNotFound(t *testing.T) {
	tr := newTestTranscriber(newFakeSpeech(), newFakeMeta(), newFakeStore())

	_, err := tr.TranscribeExisting(context.Background(), "REmissing", false)
	if !errors.Is(err, ErrRecordingNotFound) {
		t.Fatalf("expected ErrRecordingNotFound, got %v", err)
	}
}

func TestTranscribeExistingShortCircuit(t *testing.T) {
	speech := newFakeSpeech()
	meta := newFakeMeta()
	meta.recs["RE6"] = &models.Recording{
		RecordingSID:          "RE6",
		StoragePath:           "system/recording_RE6_1.wav",
		TranscriptionStatus:   models.TranscriptionStatusCompleted,
		TranscriptionText:     "done already",
		TranscriptionLanguage: "en",
		TranscriptionMethod:   models.TranscriptionMethodAuto,
	}
	tr := newTestTranscriber(speech, meta, newFakeStore())

	res, err := tr.TranscribeExisting(context.Background(), "RE6", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AlreadyTranscribed || res.Text != "done already" {
		t.Errorf("expected stored transcription returned, got %+v", res)
	}
	if speech.callCount() != 0 {
		t.Errorf("provider must not be called on short-circuit, got %d calls", speech.callCount())
	}
}

func TestTranscribeExistingForceRetranscribes(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "fresh text", Language: "et"}
	store := newFakeStore()
	store.objects["system/recording_RE7_1.wav"] = []byte("stored audio")
	meta := newFakeMeta()
	meta.recs["RE7"] = &models.Recording{
		RecordingSID:        "RE7",
		StoragePath:         "system/recording_RE7_1.wav",
		TranscriptionStatus: models.TranscriptionStatusCompleted,
		TranscriptionText:   "stale",
	}
	tr := newTestTranscriber(speech, meta, store)

	res, err := tr.TranscribeExisting(context.Background(), "RE7", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AlreadyTranscribed {
		t.Error("force must not short-circuit")
	}
	if res.Text != "fresh text" {
		t.Errorf("expected fresh transcription, got %+v", res)
	}
	if speech.callCount() != 1 {
		t.Errorf("expected one provider call, got %d", speech.callCount())
	}
}

func TestTranscribeExistingNotDownloaded(t *testing.T) {
	meta := newFakeMeta()
	meta.recs["RE8"] = &models.Recording{RecordingSID: "RE8"}
	tr := newTestTranscriber(newFakeSpeech(), meta, newFakeStore())

	_, err := tr.TranscribeExisting(context.Background(), "RE8", false)
	if !errors.Is(err, ErrNotDownloaded) {
		t.Fatalf("expected ErrNotDownloaded, got %v", err)
	}
}

func TestTranscribeExistingStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.downloadErr = errors.New("connection reset")
	meta := newFakeMeta()
	meta.recs["RE9"] = &models.Recording{RecordingSID: "RE9", StoragePath: "system/recording_RE9_1.wav"}
	tr := newTestTranscriber(newFakeSpeech(), meta, store)

	_, err := tr.TranscribeExisting(context.Background(), "RE9", false)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if se.RecordingSID != "RE9" {
		t.Errorf("expected recording SID in error, got %q", se.RecordingSID)
	}
}

func TestTranscribePersistFailureKeepsResult(t *testing.T) {
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "hello"}
	meta := newFakeMeta()
	meta.saveErr = errors.New("db down")
	tr := newTestTranscriber(speech, meta, newFakeStore())

	res := tr.Transcribe(context.Background(), "RE10", []byte("audio"), "recording.wav")

	if !res.Success || res.Text != "hello" {
		t.Errorf("metadata failure must not change the in-memory result, got %+v", res)
	}
}
