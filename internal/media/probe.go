package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Sentinel errors for probing.
var (
	ErrNoVideoStream = errors.New("media: no video stream")
	ErrProbeFailed   = errors.New("media: ffprobe failed")
)

// StreamInfo summarises the first video stream and the presence of audio.
type StreamInfo struct {
	Width     int
	Height    int
	FrameRate float64
	HasAudio  bool
}

// Prober runs ffprobe.
type Prober struct {
	// Path is the ffprobe executable. Defaults to "ffprobe".
	Path string
}

// NewProber creates a Prober using ffprobe from PATH.
func NewProber() *Prober {
	return &Prober{Path: "ffprobe"}
}

// Probe inspects input. inputArgs are placed before the input, which is how
// capture devices are addressed (e.g. "-f", "v4l2").
func (p *Prober) Probe(ctx context.Context, input string, inputArgs ...string) (*StreamInfo, error) {
	path := p.Path
	if path == "" {
		path = "ffprobe"
	}

	args := []string{"-v", "error", "-print_format", "json", "-show_streams"}
	args = append(args, inputArgs...)
	args = append(args, input)

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrProbeFailed, input, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(stdout.Bytes())
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// parseProbeOutput reads ffprobe's JSON. The first video stream wins.
func parseProbeOutput(data []byte) (*StreamInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &StreamInfo{}
	foundVideo := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = ParseFrameRate(s.AvgFrameRate)
			if info.FrameRate == 0 {
				info.FrameRate = ParseFrameRate(s.RFrameRate)
			}
		}
	}
	if !foundVideo {
		return nil, ErrNoVideoStream
	}
	return info, nil
}

// ParseFrameRate parses ffprobe rates such as "30/1", "30000/1001" or "25".
// It returns 0 for "0/0" and anything unparsable.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
