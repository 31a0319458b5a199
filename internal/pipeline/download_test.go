package pipeline

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/coldline/backend/internal/telephony"
	"github.com/coldline/backend/internal/transcription"
)

type fakeMedia struct {
	mu      sync.Mutex
	data    []byte
	err     error
	gotURLs []string
}

func (m *fakeMedia) Fetch(_ context.Context, sourceURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotURLs = append(m.gotURLs, sourceURL)
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

func TestDownloadAndPersist(t *testing.T) {
	media := &fakeMedia{data: []byte("wav bytes")}
	store := newFakeStore()
	meta := newFakeMeta()
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "hello world", Language: "en"}
	tr := newTestTranscriber(speech, meta, store)
	d := NewDownloader(media, store, meta, tr, 2, nil)

	res, err := d.DownloadAndPersist(context.Background(), "RE123", "https://api.example.com/recordings/RE123", "owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keyPattern := regexp.MustCompile(`^owner1/recording_RE123_\d+\.wav$`)
	if !keyPattern.MatchString(res.StoragePath) {
		t.Errorf("unexpected storage key %q", res.StoragePath)
	}
	if res.FileSize != int64(len("wav bytes")) {
		t.Errorf("unexpected file size %d", res.FileSize)
	}
	if store.uploadedType != "audio/wav" {
		t.Errorf("expected audio/wav upload, got %q", store.uploadedType)
	}
	if meta.markedSID != "RE123" || meta.markedPath != res.StoragePath || meta.markedSize != res.FileSize {
		t.Errorf("download not recorded: sid=%q path=%q size=%d", meta.markedSID, meta.markedPath, meta.markedSize)
	}

	// Transcription runs in the background off the same bytes.
	d.Wait()
	if speech.callCount() != 1 {
		t.Errorf("expected background transcription, got %d provider calls", speech.callCount())
	}
	saves := meta.savedUpdates()
	if len(saves) != 1 || saves[0].Text != "hello world" {
		t.Errorf("expected transcription persisted, got %+v", saves)
	}
}

func TestDownloadMissingOwnerUsesSharedNamespace(t *testing.T) {
	media := &fakeMedia{data: []byte("wav")}
	store := newFakeStore()
	meta := newFakeMeta()
	speech := newFakeSpeech()
	speech.results[""] = transcription.Result{Success: true, Text: "x"}
	d := NewDownloader(media, store, meta, newTestTranscriber(speech, meta, store), 1, nil)

	res, err := d.DownloadAndPersist(context.Background(), "RE200", "https://api.example.com/r/RE200", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^system/recording_RE200_\d+\.wav$`).MatchString(res.StoragePath) {
		t.Errorf("expected shared namespace key, got %q", res.StoragePath)
	}
	d.Wait()
}

func TestDownloadProviderRejection(t *testing.T) {
	media := &fakeMedia{err: &telephony.StatusError{StatusCode: 403, Status: "403 Forbidden"}}
	store := newFakeStore()
	meta := newFakeMeta()
	speech := newFakeSpeech()
	d := NewDownloader(media, store, meta, newTestTranscriber(speech, meta, store), 1, nil)

	_, err := d.DownloadAndPersist(context.Background(), "RE321", "https://api.example.com/r/RE321", "")
	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if de.StatusCode != 403 {
		t.Errorf("expected status 403 carried, got %d", de.StatusCode)
	}

	// The failure must stay contained: nothing stored, nothing marked,
	// no transcription attempted.
	if store.uploadedKey != "" {
		t.Error("audio must not be uploaded on fetch failure")
	}
	if meta.markedSID != "" {
		t.Error("metadata must stay pending on fetch failure")
	}
	d.Wait()
	if speech.callCount() != 0 {
		t.Error("transcription must not run on fetch failure")
	}
}

func TestDownloadUploadFailure(t *testing.T) {
	media := &fakeMedia{data: []byte("wav")}
	store := newFakeStore()
	store.uploadErr = errors.New("bucket unavailable")
	meta := newFakeMeta()
	speech := newFakeSpeech()
	d := NewDownloader(media, store, meta, newTestTranscriber(speech, meta, store), 1, nil)

	_, err := d.DownloadAndPersist(context.Background(), "RE400", "https://api.example.com/r/RE400", "")
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if meta.markedSID != "" {
		t.Error("metadata must not be marked downloaded on upload failure")
	}
	d.Wait()
	if speech.callCount() != 0 {
		t.Error("transcription must not run on upload failure")
	}
}
