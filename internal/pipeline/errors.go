package pipeline

import "fmt"

// DownloadError covers non-2xx provider responses and stream failures
// during the media fetch. The recording's download status is left pending
// so the batch path can retry manually.
type DownloadError struct {
	RecordingSID string
	StatusCode   int // 0 when the failure was not an HTTP status
	Err          error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: provider status %d", e.RecordingSID, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.RecordingSID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// StorageError covers object-store upload/download failures. Metadata is
// only written after confirmed storage success, so it never corrupts state.
type StorageError struct {
	RecordingSID string
	Err          error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.RecordingSID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
