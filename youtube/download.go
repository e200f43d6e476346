package youtube

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"ytreact/internal/media"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 30 * time.Minute
)

// Downloader fetches videos with yt-dlp as a subprocess.
type Downloader struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout bounds a single download. Defaults to 30 minutes.
	Timeout time.Duration

	// Format is passed to -f. Defaults to "best".
	Format string

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string
}

// NewDownloader creates a Downloader using yt-dlp from PATH.
func NewDownloader() *Downloader {
	return &Downloader{
		Path:    defaultYtdlpPath,
		Timeout: defaultYtdlpTimeout,
		Format:  "best",
	}
}

// Download saves videoID as {dir}/{videoID}.mp4 and returns the path. A
// non-zero exit or a missing or empty output file is ErrDownloadFailed.
func (d *Downloader) Download(ctx context.Context, videoID, dir string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("%w: empty video id", ErrDownloadFailed)
	}
	if err := d.checkInstalled(ctx); err != nil {
		return "", err
	}

	out := media.OriginalPath(dir, videoID)
	format := d.Format
	if format == "" {
		format = "best"
	}
	args := []string{"-f", format, "-o", out}
	args = append(args, d.ExtraArgs...)
	args = append(args, WatchURL(videoID))

	timeout := d.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, d.path(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Printf("youtube: downloading %s to %s", videoID, out)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if cmdCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %s: timed out after %s", ErrDownloadFailed, videoID, timeout)
		}
		return "", fmt.Errorf("%w: %s: %v: %s", ErrDownloadFailed, videoID, err, strings.TrimSpace(stderr.String()))
	}

	fi, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("%w: %s: no output file: %v", ErrDownloadFailed, videoID, err)
	}
	if fi.Size() == 0 {
		return "", fmt.Errorf("%w: %s: empty output file", ErrDownloadFailed, videoID)
	}
	return out, nil
}

// checkInstalled verifies that yt-dlp is available.
func (d *Downloader) checkInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.path(), "--version")
	if err := cmd.Run(); err != nil {
		return ErrYtdlpNotInstalled
	}
	return nil
}

func (d *Downloader) path() string {
	if d.Path == "" {
		return defaultYtdlpPath
	}
	return d.Path
}
