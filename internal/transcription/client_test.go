package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: endpoint, APIKey: "test-key"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestTranscribeSuccess(t *testing.T) {
	var gotAuth, gotModel, gotLanguage, gotFormat, gotTemp, gotFileType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		gotTemp = r.FormValue("temperature")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFileType = header.Header.Get("Content-Type")
			io.Copy(io.Discard, file)
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world","language":"en","duration":12.5}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.Transcribe(context.Background(), []byte("audio"), "recording_RE1_1.wav", Options{
		Language:       "en",
		ResponseFormat: "json",
		Temperature:    0.0,
		TemperatureSet: true,
	})

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Text != "hello world" || res.Language != "en" || res.DurationSeconds != 12.5 {
		t.Errorf("unexpected result: %+v", res)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotModel != "gpt-4o-transcribe" {
		t.Errorf("expected default model, got %q", gotModel)
	}
	if gotLanguage != "en" || gotFormat != "json" || gotTemp != "0" {
		t.Errorf("unexpected form fields: language=%q format=%q temperature=%q", gotLanguage, gotFormat, gotTemp)
	}
	if gotFileType != "audio/wav" {
		t.Errorf("expected audio/wav file part, got %q", gotFileType)
	}
}

func TestTranscribeOmitsUnsetFields(t *testing.T) {
	var hasLanguage, hasTemp bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(32 << 20)
		_, hasLanguage = r.MultipartForm.Value["language"]
		_, hasTemp = r.MultipartForm.Value["temperature"]
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.Transcribe(context.Background(), []byte("audio"), "a.wav", Options{})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if hasLanguage {
		t.Error("language field must be omitted for auto-detect")
	}
	if hasTemp {
		t.Error("temperature field must be omitted when unset")
	}
}

func TestTranscribeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.Transcribe(context.Background(), []byte("audio"), "a.wav", Options{})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status carried, got %d", res.StatusCode)
	}
	if !strings.Contains(res.Err, "429") || !strings.Contains(res.Err, "rate limited") {
		t.Errorf("expected provider status and body in error, got %q", res.Err)
	}
}

func TestTranscribeConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(t, srv.URL)
	res := c.Transcribe(context.Background(), []byte("audio"), "a.wav", Options{})
	if res.Success || res.Err == "" {
		t.Errorf("expected connection failure in result, got %+v", res)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "k"}, nil); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := NewClient(Config{Endpoint: "https://x"}, nil); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestContentTypeForFile(t *testing.T) {
	cases := map[string]string{
		"a.wav":        "audio/wav",
		"a.mp3":        "audio/mpeg",
		"a.mp4":        "audio/mp4",
		"a.m4a":        "audio/m4a",
		"a.flac":       "audio/flac",
		"a.webm":       "audio/webm",
		"a.ogg":        "audio/ogg",
		"a.unknown":    "audio/wav",
		"noext":        "audio/wav",
		"upper.WAV":    "audio/wav",
		"double.x.mp3": "audio/mpeg",
	}
	for in, want := range cases {
		if got := ContentTypeForFile(in); got != want {
			t.Errorf("ContentTypeForFile(%q) = %q, want %q", in, got, want)
		}
	}
}
