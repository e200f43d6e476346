package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	ythttp "ytreact/http"
	"ytreact/internal/retry"
)

// UploadSession is the driver's view of an upload in progress. It is
// handed to Uploader.OnProgress by value after every response.
type UploadSession struct {
	// TotalBytes is the size of the file.
	TotalBytes int64
	// BytesAcknowledged is the server's offset. It never decreases.
	BytesAcknowledged int64
	// ChunkCursor counts successful requests.
	ChunkCursor int
	// RetryCount counts retriable failures over the whole upload.
	RetryCount int
	// LastError is the kind of the most recent failure.
	LastError ErrorKind
}

// Uploader drives resumable uploads to completion, retrying retriable
// failures with the Retry schedule.
type Uploader struct {
	// Endpoint is the resumable upload URL.
	Endpoint string
	// ChunkSize is the bytes sent per request. 0 sends the whole file at once.
	ChunkSize int64
	// Retry bounds and paces retries.
	Retry retry.Config
	// OnProgress, if set, observes the session after every request.
	OnProgress func(UploadSession)

	client     *ythttp.Client
	newSession func(media io.ReaderAt, size int64, meta UploadMetadata) ChunkUploader
}

// NewUploader creates an Uploader sending requests through client, which
// must carry upload credentials.
func NewUploader(client *ythttp.Client, endpoint string) *Uploader {
	u := &Uploader{
		Endpoint:  endpoint,
		ChunkSize: 8 << 20,
		Retry:     retry.DefaultConfig(),
		client:    client,
	}
	u.newSession = func(media io.ReaderAt, size int64, meta UploadMetadata) ChunkUploader {
		return NewResumableSession(u.client, u.Endpoint, media, size, u.ChunkSize, meta)
	}
	return u
}

// Upload sends the file at path and returns the id of the created video.
// Failures are returned as *UploadError.
func (u *Uploader) Upload(ctx context.Context, path string, meta UploadMetadata) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", &UploadError{Kind: KindFatal, Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &UploadError{Kind: KindFatal, Path: path, Err: fmt.Errorf("open upload file: %w", err)}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", &UploadError{Kind: KindFatal, Path: path, Err: fmt.Errorf("stat upload file: %w", err)}
	}
	if fi.Size() == 0 {
		return "", &UploadError{Kind: KindFatal, Path: path, Err: ErrEmptyFile}
	}

	return u.drive(ctx, path, u.newSession(f, fi.Size(), meta), fi.Size())
}

// drive requests chunks until the upload completes or fails terminally.
func (u *Uploader) drive(ctx context.Context, path string, chunks ChunkUploader, total int64) (string, error) {
	state := UploadSession{TotalBytes: total}
	log.Printf("upload: uploading %s (%d bytes)", path, total)

	for {
		acked, video, err := chunks.NextChunk(ctx)
		if acked > state.BytesAcknowledged {
			state.BytesAcknowledged = acked
		}

		if err == nil {
			state.ChunkCursor++
			u.progress(state)
			if video == nil {
				continue
			}
			if video.Id == "" {
				return "", &UploadError{Kind: KindUploadIncomplete, Path: path, Retries: state.RetryCount}
			}
			log.Printf("upload: video id %q was successfully uploaded", video.Id)
			return video.Id, nil
		}

		kind := classifyUploadError(err)
		state.LastError = kind
		if !kind.Retriable() {
			ue := &UploadError{Kind: kind, Path: path, Retries: state.RetryCount, Err: err}
			var he *ythttp.HTTPError
			if errors.As(err, &he) {
				ue.StatusCode = he.StatusCode
			}
			return "", ue
		}

		state.RetryCount++
		u.progress(state)
		if state.RetryCount > u.Retry.MaxRetries {
			log.Printf("upload: giving up on %s: %v", path, err)
			return "", &UploadError{Kind: KindRetriesExhausted, Path: path, Retries: u.Retry.MaxRetries, Err: err}
		}

		delay := u.Retry.Delay(state.RetryCount)
		log.Printf("upload: %s: %v; retry %d/%d in %s", kind, err, state.RetryCount, u.Retry.MaxRetries, delay)
		if werr := u.Retry.Wait(ctx, state.RetryCount); werr != nil {
			return "", &UploadError{Kind: KindFatal, Path: path, Retries: state.RetryCount, Err: werr}
		}
	}
}

func (u *Uploader) progress(state UploadSession) {
	if u.OnProgress != nil {
		u.OnProgress(state)
	}
}

// classifyUploadError maps a request failure to an ErrorKind.
func classifyUploadError(err error) ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	var he *ythttp.HTTPError
	if errors.As(err, &he) {
		if he.Retriable() {
			return KindRetriableHTTP
		}
		return KindFatalHTTP
	}
	if ythttp.IsTransportError(err) {
		return KindRetriableTransport
	}
	return KindFatal
}
