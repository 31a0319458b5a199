package transcription

import "encoding/json"

// Options are per-attempt transcription parameters. A nil-equivalent
// Language means provider auto-detect.
type Options struct {
	Language       string
	Prompt         string
	ResponseFormat string
	Temperature    float64
	// TemperatureSet distinguishes an explicit 0.0 from "not provided".
	TemperatureSet bool
}

// Result is the normalized outcome of one transcription attempt. The client
// never returns a Go error past its boundary; all failures land here with
// Success=false.
type Result struct {
	Success         bool            `json:"success"`
	Text            string          `json:"text"`
	DurationSeconds float64         `json:"duration,omitempty"`
	Language        string          `json:"language,omitempty"`
	Segments        json.RawMessage `json:"segments,omitempty"`
	Words           json.RawMessage `json:"words,omitempty"`
	Err             string          `json:"error,omitempty"`
	StatusCode      int             `json:"status,omitempty"`
}

// apiResponse is the provider's JSON response shape; every field beyond
// text is optional depending on response_format.
type apiResponse struct {
	Text     string          `json:"text"`
	Duration float64         `json:"duration"`
	Language string          `json:"language"`
	Segments json.RawMessage `json:"segments"`
	Words    json.RawMessage `json:"words"`
}
