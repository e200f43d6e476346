package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"ytreact/internal/media"
)

// PreviewTitle is the window title of the operator preview.
const PreviewTitle = "Playing Video - React Now!"

// bytesPerPixel of the bgr24 frames exchanged with ffmpeg.
const bytesPerPixel = 3

// FFmpeg is a Backend that decodes and encodes through ffmpeg processes
// and previews through ffplay.
type FFmpeg struct {
	// FFmpegPath defaults to "ffmpeg".
	FFmpegPath string
	// FFplayPath defaults to "ffplay".
	FFplayPath string
	// Prober reads stream dimensions and rates.
	Prober *media.Prober
	// DeviceFormat is the ffmpeg input format of the camera (v4l2,
	// avfoundation, dshow).
	DeviceFormat string
	// Device is the camera input name, e.g. /dev/video0.
	Device string
}

// NewFFmpeg creates a backend using the tools on PATH and the first v4l2
// camera.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		FFmpegPath:   "ffmpeg",
		FFplayPath:   "ffplay",
		Prober:       media.NewProber(),
		DeviceFormat: "v4l2",
		Device:       "/dev/video0",
	}
}

// OpenFile decodes path to raw frames.
func (f *FFmpeg) OpenFile(ctx context.Context, path string) (FrameSource, media.StreamInfo, error) {
	info, err := f.prober().Probe(ctx, path)
	if err != nil {
		return nil, media.StreamInfo{}, err
	}
	src, err := f.startSource(ctx, "video", []string{"-i", path}, *info)
	if err != nil {
		return nil, media.StreamInfo{}, err
	}
	return src, *info, nil
}

// OpenDevice decodes the capture device to raw frames.
func (f *FFmpeg) OpenDevice(ctx context.Context) (FrameSource, media.StreamInfo, error) {
	var inputArgs []string
	if f.DeviceFormat != "" {
		inputArgs = append(inputArgs, "-f", f.DeviceFormat)
	}
	info, err := f.prober().Probe(ctx, f.Device, inputArgs...)
	if err != nil {
		return nil, media.StreamInfo{}, err
	}
	src, err := f.startSource(ctx, "device", append(inputArgs, "-i", f.Device), *info)
	if err != nil {
		return nil, media.StreamInfo{}, err
	}
	return src, *info, nil
}

func (f *FFmpeg) startSource(ctx context.Context, name string, inputArgs []string, info media.StreamInfo) (*processSource, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid frame size %dx%d", name, info.Width, info.Height)
	}

	args := []string{"-v", "error", "-nostdin"}
	args = append(args, inputArgs...)
	args = append(args, "-an", "-f", "rawvideo", "-pix_fmt", "bgr24", "pipe:1")

	cmd := exec.CommandContext(ctx, f.ffmpeg(), args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout pipe: %w", name, err)
	}
	p := &processSource{
		name:      name,
		cmd:       cmd,
		stdout:    stdout,
		frameSize: info.Width * info.Height * bytesPerPixel,
	}
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: start ffmpeg: %w", name, err)
	}
	return p, nil
}

// CreateWriter encodes raw frames to an mp4 file at path.
func (f *FFmpeg) CreateWriter(ctx context.Context, path string, width, height int, fps float64) (FrameSink, error) {
	args := []string{
		"-v", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", formatRate(fps),
		"-i", "pipe:0",
		"-c:v", "mpeg4", "-tag:v", "mp4v",
		path,
	}
	// The writer outlives a cancelled ctx so the container is finalized.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), f.ffmpeg(), args...)
	return startSink("writer", cmd)
}

// OpenDisplay starts an ffplay window fed with raw frames.
func (f *FFmpeg) OpenDisplay(ctx context.Context, width, height int, fps float64) (Display, error) {
	args := []string{
		"-loglevel", "error",
		"-f", "rawvideo", "-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", formatRate(fps),
		"-window_title", PreviewTitle,
		"-autoexit",
		"-",
	}
	path := f.FFplayPath
	if path == "" {
		path = "ffplay"
	}
	cmd := exec.CommandContext(ctx, path, args...)
	sink, err := startSink("preview", cmd)
	if err != nil {
		return nil, err
	}
	return &processDisplay{sink: sink}, nil
}

func (f *FFmpeg) ffmpeg() string {
	if f.FFmpegPath == "" {
		return "ffmpeg"
	}
	return f.FFmpegPath
}

func (f *FFmpeg) prober() *media.Prober {
	if f.Prober == nil {
		return media.NewProber()
	}
	return f.Prober
}

func formatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// processSource reads fixed-size frames from a decoder's stdout.
type processSource struct {
	name      string
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    bytes.Buffer
	frameSize int

	waitOnce sync.Once
	waitErr  error
}

func (p *processSource) Read(ctx context.Context) ReadResult {
	buf := make([]byte, p.frameSize)
	_, err := io.ReadFull(p.stdout, buf)
	if err == nil {
		return ReadResult{Kind: Frame, Data: buf}
	}
	if ctx.Err() != nil {
		return ReadResult{Kind: DeviceError, Err: ctx.Err()}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if werr := p.wait(); werr != nil {
			return ReadResult{Kind: DeviceError, Err: fmt.Errorf("%s: ffmpeg: %v: %s", p.name, werr, strings.TrimSpace(p.stderr.String()))}
		}
		return ReadResult{Kind: EndOfStream}
	}
	return ReadResult{Kind: DeviceError, Err: fmt.Errorf("%s: read frame: %w", p.name, err)}
}

// Close stops the decoder.
func (p *processSource) Close() error {
	p.cmd.Process.Kill()
	p.wait()
	return nil
}

func (p *processSource) wait() error {
	p.waitOnce.Do(func() { p.waitErr = p.cmd.Wait() })
	return p.waitErr
}

// processSink writes frames to a process's stdin.
type processSink struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

func startSink(name string, cmd *exec.Cmd) (*processSink, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdin pipe: %w", name, err)
	}
	p := &processSink{name: name, cmd: cmd, stdin: stdin}
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: start %s: %w", name, cmd.Path, err)
	}
	return p, nil
}

func (p *processSink) WriteFrame(frame []byte) error {
	_, err := p.stdin.Write(frame)
	return err
}

// Close ends the input and waits for the process to exit.
func (p *processSink) Close() error {
	p.closeOnce.Do(func() {
		p.stdin.Close()
		if err := p.cmd.Wait(); err != nil {
			p.closeErr = fmt.Errorf("%s: %v: %s", p.name, err, strings.TrimSpace(p.stderr.String()))
		}
	})
	return p.closeErr
}

// processDisplay is an ffplay preview window.
type processDisplay struct {
	sink *processSink
}

func (d *processDisplay) Show(frame []byte) error {
	return d.sink.WriteFrame(frame)
}

// Close shuts the window. Exit errors are ignored: the operator may have
// quit ffplay already.
func (d *processDisplay) Close() error {
	d.sink.stdin.Close()
	d.sink.cmd.Process.Kill()
	d.sink.cmd.Wait()
	return nil
}
