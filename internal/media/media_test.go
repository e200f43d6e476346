package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestArtifactPaths(t *testing.T) {
	original := OriginalPath("work", "abc123")
	if original != filepath.Join("work", "abc123.mp4") {
		t.Errorf("OriginalPath() = %q", original)
	}
	if got, want := ReactionPath(original), filepath.Join("work", "abc123_reaction.mp4"); got != want {
		t.Errorf("ReactionPath() = %q, want %q", got, want)
	}
	if got, want := SplitPath(original), filepath.Join("work", "abc123_split.mp4"); got != want {
		t.Errorf("SplitPath() = %q, want %q", got, want)
	}
}

func TestArtifactPaths_IDContainingExt(t *testing.T) {
	// only the trailing extension is replaced
	original := OriginalPath("", "a.mp4b")
	if got, want := ReactionPath(original), "a.mp4b_reaction.mp4"; got != want {
		t.Errorf("ReactionPath() = %q, want %q", got, want)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{"60/2", 30},
	}
	for _, tt := range tests {
		if got := ParseFrameRate(tt.in); got != tt.want {
			t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := ParseFrameRate("30000/1001"); got < 29.96 || got > 29.98 {
		t.Errorf("ParseFrameRate(30000/1001) = %v, want ~29.97", got)
	}
}

func TestParseProbeOutput(t *testing.T) {
	info, err := parseProbeOutput([]byte(sampleProbeOutput))
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("dims = %dx%d, want 1280x720", info.Width, info.Height)
	}
	if info.FrameRate != 30 {
		t.Errorf("FrameRate = %v, want 30", info.FrameRate)
	}
	if !info.HasAudio {
		t.Error("HasAudio = false, want true")
	}
}

func TestParseProbeOutput_NoVideo(t *testing.T) {
	_, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio"}]}`))
	if !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("error = %v, want ErrNoVideoStream", err)
	}
}

func TestParseProbeOutput_FallbackRate(t *testing.T) {
	info, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"video","width":640,"height":480,"avg_frame_rate":"0/0","r_frame_rate":"15/1"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if info.FrameRate != 15 || info.HasAudio {
		t.Errorf("info = %+v", info)
	}
}

func TestProber_WithMockFFprobe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script mock")
	}
	dir := t.TempDir()
	mockPath := filepath.Join(dir, "ffprobe")
	script := `#!/bin/sh
for last; do :; done
if [ "$last" = "missing.mp4" ]; then
    echo "missing.mp4: No such file or directory" >&2
    exit 1
fi
cat << 'EOF'
` + sampleProbeOutput + `
EOF
`
	if err := os.WriteFile(mockPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to create mock ffprobe: %v", err)
	}

	p := &Prober{Path: mockPath}
	info, err := p.Probe(context.Background(), "/dev/video0", "-f", "v4l2")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.Width != 1280 {
		t.Errorf("Width = %d, want 1280", info.Width)
	}

	_, err = p.Probe(context.Background(), "missing.mp4")
	if !errors.Is(err, ErrProbeFailed) {
		t.Errorf("Probe(missing) error = %v, want ErrProbeFailed", err)
	}
}

func TestCheckTools(t *testing.T) {
	err := CheckTools("/nonexistent/ffmpeg-xyz", "")
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("CheckTools() error = %v, want ErrToolNotFound", err)
	}
}

const sampleProbeOutput = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1280,
      "height": 720,
      "r_frame_rate": "30/1",
      "avg_frame_rate": "30/1"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "r_frame_rate": "0/0",
      "avg_frame_rate": "0/0"
    }
  ]
}`
