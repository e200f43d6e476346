package ytreact

import (
	"ytreact/capture"
	"ytreact/composite"
	"ytreact/internal/retry"
	"ytreact/storage"
	"ytreact/youtube"
)

// Error types exported from sub-packages.
type (
	// UploadError describes a failed upload and its kind.
	UploadError = youtube.UploadError
	// EncoderError describes a failed ffmpeg render.
	EncoderError = composite.EncoderError
	// RetryableError wraps the last error once retries are exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled
	ErrDownloadFailed    = youtube.ErrDownloadFailed
	ErrUploadIncomplete  = youtube.ErrUploadIncomplete
	ErrRetriesExhausted  = youtube.ErrRetriesExhausted
	ErrFatalHTTP         = youtube.ErrFatalHTTP

	// ErrDeviceUnavailable means the video or the camera could not be opened.
	ErrDeviceUnavailable = capture.ErrDeviceUnavailable
	ErrNoFrames          = capture.ErrNoFrames

	ErrEncoderFailed = composite.ErrEncoderFailed

	ErrNotFound    = storage.ErrNotFound
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
