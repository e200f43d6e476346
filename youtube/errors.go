package youtube

import (
	"errors"
	"fmt"
)

// Sentinel errors for discovery, download and upload.
var (
	ErrAPIKeyRequired    = errors.New("youtube: api key required")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
	ErrDownloadFailed    = errors.New("youtube: download failed")
	ErrInvalidMetadata   = errors.New("youtube: invalid upload metadata")
	ErrEmptyFile         = errors.New("youtube: refusing to upload empty file")

	// ErrUploadIncomplete means the endpoint reported completion without a video id.
	ErrUploadIncomplete = errors.New("youtube: upload finished without a video id")
	// ErrRetriesExhausted means retriable failures outlasted the retry budget.
	ErrRetriesExhausted = errors.New("youtube: max retries exceeded")
	// ErrFatalHTTP means the endpoint answered with a non-retriable status.
	ErrFatalHTTP = errors.New("youtube: non-retriable http status")
)

// ErrorKind classifies upload failures.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindRetriableTransport is a connection-level failure.
	KindRetriableTransport
	// KindRetriableHTTP is a 500, 502, 503 or 504 response.
	KindRetriableHTTP
	// KindFatalHTTP is any other error status.
	KindFatalHTTP
	// KindUploadIncomplete is a terminal response without an id.
	KindUploadIncomplete
	// KindRetriesExhausted ends an upload after MaxRetries retries.
	KindRetriesExhausted
	// KindFatal is any other error, e.g. reading the local file.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRetriableTransport:
		return "retriable transport error"
	case KindRetriableHTTP:
		return "retriable http error"
	case KindFatalHTTP:
		return "fatal http error"
	case KindUploadIncomplete:
		return "upload incomplete"
	case KindRetriesExhausted:
		return "retries exhausted"
	case KindFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// Retriable reports whether the kind is retried by the upload driver.
func (k ErrorKind) Retriable() bool {
	return k == KindRetriableTransport || k == KindRetriableHTTP
}

// UploadError is the terminal error of Uploader.Upload.
// Use errors.As() to inspect it, or errors.Is() against the sentinels:
//
//	var upErr *youtube.UploadError
//	if errors.As(err, &upErr) && upErr.Kind == youtube.KindFatalHTTP {
//		fmt.Printf("rejected with status %d\n", upErr.StatusCode)
//	}
type UploadError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Path is the local file being uploaded.
	Path string
	// StatusCode is the HTTP status for HTTP failures.
	StatusCode int
	// Retries is the number of retries spent.
	Retries int
	// Err is the last underlying error.
	Err error
}

func (e *UploadError) Error() string {
	if e.Kind == KindRetriesExhausted {
		return fmt.Sprintf("upload %s: %s after %d retries: %v", e.Path, e.Kind, e.Retries, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("upload %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("upload %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is matches the sentinel belonging to the error's Kind.
func (e *UploadError) Is(target error) bool {
	switch e.Kind {
	case KindUploadIncomplete:
		return target == ErrUploadIncomplete
	case KindRetriesExhausted:
		return target == ErrRetriesExhausted
	case KindFatalHTTP:
		return target == ErrFatalHTTP
	}
	return false
}
