// Package transcription calls an external speech-to-text endpoint with
// audio bytes and language hints and normalizes the provider response.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one transcription request. The provider offers no
// partial results, so exceeding it fails the attempt; there is no retry.
const DefaultTimeout = 60 * time.Second

// Config contains transcription client configuration.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client posts multipart audio payloads to the speech-to-text endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a transcription client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("transcription endpoint cannot be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcription API key cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-transcribe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// Transcribe sends audio for transcription. Failures of any kind (timeout,
// auth, malformed audio, non-2xx status) are reported in the Result, never
// as a panic or error that escapes this boundary.
func (c *Client) Transcribe(ctx context.Context, audio []byte, fileName string, opts Options) Result {
	body, contentType, err := c.multipartBody(audio, fileName, opts)
	if err != nil {
		return Result{Err: fmt.Sprintf("build request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return Result{Err: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("transcription request failed", zap.String("file", fileName), zap.Error(err))
		return Result{Err: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: fmt.Sprintf("read response: %v", err), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("transcription provider error",
			zap.Int("status", resp.StatusCode), zap.String("file", fileName))
		return Result{
			Err:        fmt.Sprintf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			StatusCode: resp.StatusCode,
		}
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return Result{Err: fmt.Sprintf("parse response: %v", err), StatusCode: resp.StatusCode}
	}

	return Result{
		Success:         true,
		Text:            api.Text,
		DurationSeconds: api.Duration,
		Language:        api.Language,
		Segments:        api.Segments,
		Words:           api.Words,
		StatusCode:      resp.StatusCode,
	}
}

func (c *Client) multipartBody(audio []byte, fileName string, opts Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// The provider sniffs the audio container from the part's content type,
	// so it must follow the file extension rather than octet-stream.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", ContentTypeForFile(fileName))
	fw, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("model", c.cfg.Model); err != nil {
		return nil, "", err
	}
	if opts.Language != "" {
		if err := w.WriteField("language", opts.Language); err != nil {
			return nil, "", err
		}
	}
	if opts.Prompt != "" {
		if err := w.WriteField("prompt", opts.Prompt); err != nil {
			return nil, "", err
		}
	}
	if opts.ResponseFormat != "" {
		if err := w.WriteField("response_format", opts.ResponseFormat); err != nil {
			return nil, "", err
		}
	}
	if opts.TemperatureSet {
		if err := w.WriteField("temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// ContentTypeForFile maps an audio file extension to its MIME type.
// Unknown extensions default to audio/wav.
func ContentTypeForFile(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return "audio/wav"
	}
	switch strings.ToLower(fileName[idx+1:]) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "mp4":
		return "audio/mp4"
	case "m4a":
		return "audio/m4a"
	case "flac":
		return "audio/flac"
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
