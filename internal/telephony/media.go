// Package telephony fetches call recording media from the telephony
// provider's authenticated media URLs.
package telephony

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Credentials authenticate against the provider account that created a
// recording. Media URLs require HTTP Basic auth with accountSID:authToken.
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// StatusError reports a non-2xx response from the provider media endpoint.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider media fetch: HTTP %d %s", e.StatusCode, e.Status)
}

// MediaClient downloads recording audio from provider media URLs.
type MediaClient struct {
	creds      Credentials
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMediaClient creates a media client for one provider account.
func NewMediaClient(creds Credentials, logger *zap.Logger) *MediaClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaClient{
		creds: creds,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // recordings can run tens of MB
		},
		logger: logger,
	}
}

// NormalizeMediaURL appends the uncompressed WAV suffix unless the URL
// already names an audio encoding.
func NormalizeMediaURL(url string) string {
	if strings.HasSuffix(url, ".wav") || strings.HasSuffix(url, ".mp3") {
		return url
	}
	return url + ".wav"
}

// Fetch downloads the full recording body into memory. Non-200 responses
// yield a *StatusError carrying the status code.
func (c *MediaClient) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	mediaURL := NormalizeMediaURL(sourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.creds.AccountSID, c.creds.AuthToken)
	req.Header.Set("User-Agent", "coldline-dialer/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("media stream: %w", err)
	}
	c.logger.Debug("media downloaded", zap.String("url", mediaURL), zap.Int64("bytes", n))
	return buf.Bytes(), nil
}
