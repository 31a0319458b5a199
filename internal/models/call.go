package models

import (
	"time"

	"github.com/google/uuid"
)

// Call is one dialed call from the call_history table. The recording
// pipeline only reads it to attribute a recording to the account whose
// telephony credentials produced the call, and writes back the recording
// URL once the audio is durably stored.
type Call struct {
	ID                 uuid.UUID  `json:"id"`
	CallSID            string     `json:"call_sid"`
	UserID             *uuid.UUID `json:"user_id,omitempty"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	Status             string     `json:"status,omitempty"`
	RecordingURL       string     `json:"recording_url,omitempty"`
	RecordingAvailable bool       `json:"recording_available"`
	CreatedAt          time.Time  `json:"created_at"`
}
