// Package composite renders the split-screen video: the original on the
// left, the reaction on the right.
package composite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"ytreact/internal/media"
)

// ErrEncoderFailed is matched by every *EncoderError.
var ErrEncoderFailed = errors.New("composite: encoder failed")

// EncoderError reports a failed ffmpeg run. The partial output is removed.
type EncoderError struct {
	// Output is the file ffmpeg was asked to write.
	Output string
	// ExitCode is ffmpeg's exit status, or -1 if it did not run.
	ExitCode int
	// Stderr is the tail of ffmpeg's diagnostics.
	Stderr string
	Err    error
}

func (e *EncoderError) Error() string {
	msg := fmt.Sprintf("composite %s: exit code %d", e.Output, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *EncoderError) Unwrap() error { return e.Err }

// Is reports ErrEncoderFailed.
func (e *EncoderError) Is(target error) bool { return target == ErrEncoderFailed }

const maxStderr = 2 << 10

// Invoker runs ffmpeg to composite an original and its reaction.
type Invoker struct {
	// FFmpegPath defaults to "ffmpeg".
	FFmpegPath string
	// Prober inspects both inputs before encoding.
	Prober *media.Prober
	// VideoCodec defaults to libx264.
	VideoCodec string
	// AudioCodec defaults to aac.
	AudioCodec string
}

// NewInvoker creates an Invoker with the tools on PATH.
func NewInvoker() *Invoker {
	return &Invoker{
		FFmpegPath: "ffmpeg",
		Prober:     media.NewProber(),
		VideoCodec: "libx264",
		AudioCodec: "aac",
	}
}

// Composite writes {id}_split.mp4 next to original and returns its path.
func (inv *Invoker) Composite(ctx context.Context, original, reaction string) (string, error) {
	out := media.SplitPath(original)

	prober := inv.Prober
	if prober == nil {
		prober = media.NewProber()
	}
	origInfo, err := prober.Probe(ctx, original)
	if err != nil {
		return "", &EncoderError{Output: out, ExitCode: -1, Err: fmt.Errorf("probe original: %w", err)}
	}
	reactInfo, err := prober.Probe(ctx, reaction)
	if err != nil {
		return "", &EncoderError{Output: out, ExitCode: -1, Err: fmt.Errorf("probe reaction: %w", err)}
	}

	layout, err := NewLayout(*origInfo, *reactInfo)
	if err != nil {
		return "", &EncoderError{Output: out, ExitCode: -1, Err: err}
	}
	audio := ChooseAudio(origInfo.HasAudio, reactInfo.HasAudio)
	args := inv.Args(original, reaction, out, layout, audio)

	log.Printf("composite: %s + %s -> %s (%dx%d, audio %s)", original, reaction, out, layout.Width, layout.Height, audio)
	if err := inv.run(ctx, out, args); err != nil {
		os.Remove(out)
		return "", err
	}

	fi, err := os.Stat(out)
	if err != nil || fi.Size() == 0 {
		os.Remove(out)
		if err == nil {
			err = errors.New("empty output")
		}
		return "", &EncoderError{Output: out, ExitCode: 0, Err: err}
	}
	return out, nil
}

// Args returns the ffmpeg arguments of a composite run.
func (inv *Invoker) Args(original, reaction, out string, layout Layout, audio AudioMode) []string {
	videoCodec := inv.VideoCodec
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	audioCodec := inv.AudioCodec
	if audioCodec == "" {
		audioCodec = "aac"
	}

	args := []string{
		"-v", "error", "-y", "-nostdin",
		"-i", original,
		"-i", reaction,
		"-filter_complex", FilterGraph(layout, audio),
		"-map", "[v]",
	}
	switch audio {
	case AudioMerge:
		args = append(args, "-map", "[a]")
	case AudioOriginal:
		args = append(args, "-map", "0:a")
	case AudioReaction:
		args = append(args, "-map", "1:a")
	}
	args = append(args, "-c:v", videoCodec)
	if audio == AudioNone {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", audioCodec, "-strict", "experimental")
	}
	return append(args, out)
}

func (inv *Invoker) run(ctx context.Context, out string, args []string) error {
	path := inv.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &EncoderError{Output: out, ExitCode: code, Stderr: tail(stderr.String(), maxStderr), Err: err}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
