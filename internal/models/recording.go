package models

import (
	"time"

	"github.com/google/uuid"
)

// Download lifecycle of the provider audio artifact.
const (
	DownloadStatusPending   = "pending"
	DownloadStatusCompleted = "completed"
	DownloadStatusFailed    = "failed"
)

// Transcription lifecycle.
const (
	TranscriptionStatusPending    = "pending"
	TranscriptionStatusProcessing = "processing"
	TranscriptionStatusCompleted  = "completed"
	TranscriptionStatusFailed     = "failed"
)

// How the final transcription text was obtained.
const (
	// TranscriptionMethodAuto means provider language auto-detection succeeded.
	TranscriptionMethodAuto = "auto"
	// TranscriptionMethodManual means an explicit language hint from the
	// candidate sweep produced the text.
	TranscriptionMethodManual = "manual"
	// TranscriptionMethodFallback means no attempt produced text and the
	// auto-detect attempt was preserved for diagnostics.
	TranscriptionMethodFallback = "fallback"
	// TranscriptionMethodError means the sweep aborted before the first
	// attempt completed (e.g. empty audio).
	TranscriptionMethodError = "error"
)

// Recording is one call's audio artifact (telephony provider → S3 → transcription).
type Recording struct {
	ID                    uuid.UUID  `json:"id"`
	RecordingSID          string     `json:"recording_sid"`
	CallSID               string     `json:"call_sid"`
	OwnerID               *uuid.UUID `json:"owner_id,omitempty"`
	SourceURL             string     `json:"source_url"`
	StoragePath           string     `json:"storage_path,omitempty"`
	FileSize              int64      `json:"file_size"`
	DurationSeconds       int        `json:"duration_seconds"`
	Channels              int        `json:"channels"`
	Source                string     `json:"source,omitempty"`
	DownloadStatus        string     `json:"download_status"`
	TranscriptionStatus   string     `json:"transcription_status"`
	TranscriptionText     string     `json:"transcription_text,omitempty"`
	TranscriptionLanguage string     `json:"transcription_language,omitempty"`
	TranscriptionMethod   string     `json:"transcription_method,omitempty"`
	TranscriptionError    string     `json:"transcription_error,omitempty"`
	TranscriptionDuration float64    `json:"transcription_duration,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	TranscribedAt         *time.Time `json:"transcribed_at,omitempty"`
}

// Transcribed reports whether the record already carries usable text.
func (r *Recording) Transcribed() bool {
	return r.TranscriptionStatus == TranscriptionStatusCompleted && r.TranscriptionText != ""
}

// TranscriptionUpdate is the terminal write of one transcription attempt.
// Empty optional fields are persisted as NULL so a later attempt cannot
// inherit stale values from an earlier one.
type TranscriptionUpdate struct {
	Status          string
	Text            string
	Language        string
	Method          string
	Error           string
	DurationSeconds float64
	Segments        []byte // raw provider JSON, stored as-is
	Words           []byte
}
