package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	ythttp "ytreact/http"

	"google.golang.org/api/youtube/v3"
)

// DefaultContentType is announced for uploaded media.
const DefaultContentType = "video/*"

// statusResumeIncomplete is the status the upload endpoint answers for a
// partially received file.
const statusResumeIncomplete = 308

// ChunkUploader advances a resumable upload by one request. It returns the
// number of bytes the server has acknowledged, and the created video once
// the server reports the upload complete.
type ChunkUploader interface {
	NextChunk(ctx context.Context) (acked int64, video *youtube.Video, err error)
}

// ResumableSession speaks the resumable upload protocol for one file.
//
// The first call opens the session; later calls PUT the next chunk. After
// any failed request the next call asks the server for its offset before
// sending data, so a retried chunk resumes from what was actually stored.
type ResumableSession struct {
	client      *ythttp.Client
	endpoint    string
	media       io.ReaderAt
	total       int64
	chunkSize   int64
	contentType string
	meta        UploadMetadata

	uri        string
	offset     int64
	needStatus bool
}

// NewResumableSession prepares an upload of total bytes read from media.
// A chunkSize of 0 sends the remaining file in a single request.
func NewResumableSession(client *ythttp.Client, endpoint string, media io.ReaderAt, total, chunkSize int64, meta UploadMetadata) *ResumableSession {
	return &ResumableSession{
		client:      client,
		endpoint:    endpoint,
		media:       media,
		total:       total,
		chunkSize:   chunkSize,
		contentType: DefaultContentType,
		meta:        meta,
	}
}

// NextChunk implements ChunkUploader.
func (s *ResumableSession) NextChunk(ctx context.Context) (int64, *youtube.Video, error) {
	if s.uri == "" {
		if err := s.open(ctx); err != nil {
			return s.offset, nil, err
		}
	}

	if s.needStatus {
		video, err := s.queryStatus(ctx)
		if err != nil || video != nil {
			return s.offset, video, err
		}
		s.needStatus = false
	}

	video, err := s.sendChunk(ctx)
	if err != nil {
		s.needStatus = true
	}
	return s.offset, video, err
}

// open creates the upload session and records its URI.
func (s *ResumableSession) open(ctx context.Context) error {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return fmt.Errorf("parse upload endpoint: %w", err)
	}
	q := u.Query()
	q.Set("uploadType", "resumable")
	q.Set("part", "snippet,status")
	u.RawQuery = q.Encode()

	body, err := json.Marshal(s.meta.video())
	if err != nil {
		return fmt.Errorf("encode video resource: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(s.total, 10))
	req.Header.Set("X-Upload-Content-Type", s.contentType)

	resp, err := s.client.Do(req, "open session")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ythttp.ReadError(resp, "open session")
	}
	drain(resp)

	loc := resp.Header.Get("Location")
	if loc == "" {
		return &ythttp.TransportError{Op: "open session", Err: fmt.Errorf("%w: no Location header", ythttp.ErrMalformedResponse)}
	}
	sessionURL, err := u.Parse(loc)
	if err != nil {
		return &ythttp.TransportError{Op: "open session", Err: fmt.Errorf("%w: bad Location %q", ythttp.ErrMalformedResponse, loc)}
	}
	s.uri = sessionURL.String()
	s.offset = 0
	return nil
}

// queryStatus asks the server how many bytes it holds. A non-nil video
// means the server had already finished the upload.
func (s *ResumableSession) queryStatus(ctx context.Context) (*youtube.Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uri, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.ContentLength = 0
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", s.total))

	resp, err := s.client.Do(req, "query status")
	if err != nil {
		return nil, err
	}
	return s.handleResponse(resp, "query status")
}

// sendChunk PUTs the bytes following the acknowledged offset.
func (s *ResumableSession) sendChunk(ctx context.Context) (*youtube.Video, error) {
	n := s.total - s.offset
	if s.chunkSize > 0 && n > s.chunkSize {
		n = s.chunkSize
	}

	body := io.NewSectionReader(s.media, s.offset, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uri, body)
	if err != nil {
		return nil, fmt.Errorf("create chunk request: %w", err)
	}
	req.ContentLength = n
	req.Header.Set("Content-Type", s.contentType)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.offset, s.offset+n-1, s.total))

	resp, err := s.client.Do(req, "upload chunk")
	if err != nil {
		return nil, err
	}
	return s.handleResponse(resp, "upload chunk")
}

func (s *ResumableSession) handleResponse(resp *http.Response, op string) (*youtube.Video, error) {
	switch resp.StatusCode {
	case statusResumeIncomplete:
		drain(resp)
		if acked, ok := parseRange(resp.Header.Get("Range")); ok && acked > s.offset {
			s.offset = acked
		}
		return nil, nil
	case http.StatusOK, http.StatusCreated:
		defer resp.Body.Close()
		var video youtube.Video
		if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
			return nil, &ythttp.TransportError{Op: op, Err: fmt.Errorf("%w: decode video: %v", ythttp.ErrMalformedResponse, err)}
		}
		s.offset = s.total
		return &video, nil
	default:
		return nil, ythttp.ReadError(resp, op)
	}
}

// parseRange reads "bytes=0-N" and returns N+1.
func parseRange(h string) (int64, bool) {
	h = strings.TrimSpace(h)
	if !strings.HasPrefix(h, "bytes=") {
		return 0, false
	}
	_, last, ok := strings.Cut(strings.TrimPrefix(h, "bytes="), "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n + 1, true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
