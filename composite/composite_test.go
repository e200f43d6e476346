package composite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"ytreact/internal/media"
)

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name     string
		original media.StreamInfo
		reaction media.StreamInfo
		want     Layout
	}{
		{
			name:     "equal widths",
			original: media.StreamInfo{Width: 640, Height: 480},
			reaction: media.StreamInfo{Width: 640, Height: 480},
			want:     Layout{320, 240, 320, 240, 640, 240},
		},
		{
			name:     "wide original",
			original: media.StreamInfo{Width: 1280, Height: 720},
			reaction: media.StreamInfo{Width: 640, Height: 480},
			want:     Layout{640, 360, 320, 240, 960, 360},
		},
		{
			name:     "odd sizes round to even",
			original: media.StreamInfo{Width: 854, Height: 480},
			reaction: media.StreamInfo{Width: 642, Height: 362},
			want:     Layout{428, 240, 322, 182, 750, 240},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLayout(tt.original, tt.reaction)
			if err != nil {
				t.Fatalf("NewLayout() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NewLayout() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewLayout_Invalid(t *testing.T) {
	if _, err := NewLayout(media.StreamInfo{}, media.StreamInfo{Width: 640, Height: 480}); err == nil {
		t.Error("NewLayout() accepted a zero-size input")
	}
}

func TestChooseAudio(t *testing.T) {
	tests := []struct {
		orig, react bool
		want        AudioMode
	}{
		{true, true, AudioMerge},
		{true, false, AudioOriginal},
		{false, true, AudioReaction},
		{false, false, AudioNone},
	}
	for _, tt := range tests {
		if got := ChooseAudio(tt.orig, tt.react); got != tt.want {
			t.Errorf("ChooseAudio(%v, %v) = %v, want %v", tt.orig, tt.react, got, tt.want)
		}
	}
}

func TestFilterGraph(t *testing.T) {
	same := Layout{320, 240, 320, 240, 640, 240}
	want := "[0:v]scale=320:240[vid1];[1:v]scale=320:240[vid2];[vid1][vid2]hstack=inputs=2[v];[0:a][1:a]amerge=inputs=2[a]"
	if got := FilterGraph(same, AudioMerge); got != want {
		t.Errorf("FilterGraph() =\n%s\nwant\n%s", got, want)
	}

	mixed := Layout{640, 360, 320, 240, 960, 360}
	got := FilterGraph(mixed, AudioOriginal)
	want = "[0:v]scale=640:360[vid1];[1:v]scale=320:240,pad=320:360:0:(oh-ih)/2[vid2];[vid1][vid2]hstack=inputs=2[v]"
	if got != want {
		t.Errorf("FilterGraph() =\n%s\nwant\n%s", got, want)
	}
}

func TestInvoker_Args(t *testing.T) {
	inv := NewInvoker()
	l := Layout{320, 240, 320, 240, 640, 240}

	tests := []struct {
		audio   AudioMode
		want    []string
		notWant []string
	}{
		{AudioMerge, []string{"-map [v] -map [a]", "-c:a aac -strict experimental"}, []string{"-an"}},
		{AudioOriginal, []string{"-map [v] -map 0:a", "-c:a aac"}, []string{"amerge", "-an"}},
		{AudioReaction, []string{"-map [v] -map 1:a"}, []string{"amerge"}},
		{AudioNone, []string{"-map [v] -c:v libx264 -an"}, []string{"-c:a", "amerge"}},
	}
	for _, tt := range tests {
		t.Run(tt.audio.String(), func(t *testing.T) {
			args := inv.Args("a.mp4", "a_reaction.mp4", "a_split.mp4", l, tt.audio)
			joined := strings.Join(args, " ")
			if args[len(args)-1] != "a_split.mp4" {
				t.Errorf("last arg = %q, want output path", args[len(args)-1])
			}
			if !strings.Contains(joined, "-i a.mp4 -i a_reaction.mp4") {
				t.Errorf("inputs out of order: %s", joined)
			}
			for _, w := range tt.want {
				if !strings.Contains(joined, w) {
					t.Errorf("args %q missing %q", joined, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(joined, nw) {
					t.Errorf("args %q contain %q", joined, nw)
				}
			}
		})
	}
}

// mockInvoker writes ffprobe and ffmpeg stand-ins. Originals are 640x360
// with audio, reactions 640x480 without. The encoder logs its arguments
// to args.txt, fails when an input name contains "fail" and writes an
// empty file when it contains "empty".
func mockInvoker(t *testing.T) (*Invoker, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script mock")
	}
	dir := t.TempDir()

	probe := `#!/bin/sh
for last; do :; done
case "$last" in
    *_reaction.mp4)
cat << 'EOF'
{"streams":[{"codec_type":"video","width":640,"height":480,"avg_frame_rate":"30/1"}]}
EOF
    ;;
    *)
cat << 'EOF'
{"streams":[{"codec_type":"video","width":640,"height":360,"avg_frame_rate":"30/1"},{"codec_type":"audio"}]}
EOF
    ;;
esac
`
	ffmpeg := `#!/bin/sh
echo "$@" > "` + filepath.Join(dir, "args.txt") + `"
for last; do :; done
case "$*" in
    *fail*) echo "Error initializing filter 'amerge'" >&2; exit 1 ;;
    *empty*) : > "$last"; exit 0 ;;
esac
printf 'split-video' > "$last"
`
	probePath := filepath.Join(dir, "ffprobe")
	ffmpegPath := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(probePath, []byte(probe), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ffmpegPath, []byte(ffmpeg), 0755); err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker()
	inv.FFmpegPath = ffmpegPath
	inv.Prober = &media.Prober{Path: probePath}
	return inv, dir
}

func TestInvoker_Composite(t *testing.T) {
	inv, dir := mockInvoker(t)
	work := t.TempDir()
	original := media.OriginalPath(work, "abc")
	reaction := media.ReactionPath(original)

	out, err := inv.Composite(context.Background(), original, reaction)
	if err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	if want := filepath.Join(work, "abc_split.mp4"); out != want {
		t.Errorf("Composite() = %q, want %q", out, want)
	}
	if data, _ := os.ReadFile(out); string(data) != "split-video" {
		t.Errorf("output = %q", data)
	}

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	// video-only reaction: the original's audio is mapped directly
	if !strings.Contains(string(args), "-map 0:a") || strings.Contains(string(args), "amerge") {
		t.Errorf("ffmpeg args = %s", args)
	}
	if !strings.Contains(string(args), "scale=320:180,pad=320:240") {
		t.Errorf("ffmpeg args = %s, want padded original", args)
	}
}

func TestInvoker_EncoderFailure(t *testing.T) {
	inv, _ := mockInvoker(t)
	work := t.TempDir()
	original := media.OriginalPath(work, "fail")

	_, err := inv.Composite(context.Background(), original, media.ReactionPath(original))
	if !errors.Is(err, ErrEncoderFailed) {
		t.Fatalf("error = %v, want ErrEncoderFailed", err)
	}
	var encErr *EncoderError
	if !errors.As(err, &encErr) || encErr.ExitCode != 1 {
		t.Errorf("EncoderError = %+v, want exit code 1", encErr)
	}
	if !strings.Contains(err.Error(), "amerge") {
		t.Errorf("error = %q, want stderr included", err)
	}
	if _, statErr := os.Stat(media.SplitPath(original)); !os.IsNotExist(statErr) {
		t.Error("partial output left behind")
	}
}

func TestInvoker_EmptyOutput(t *testing.T) {
	inv, _ := mockInvoker(t)
	work := t.TempDir()
	original := media.OriginalPath(work, "empty")

	_, err := inv.Composite(context.Background(), original, media.ReactionPath(original))
	if !errors.Is(err, ErrEncoderFailed) {
		t.Fatalf("error = %v, want ErrEncoderFailed", err)
	}
	if _, statErr := os.Stat(media.SplitPath(original)); !os.IsNotExist(statErr) {
		t.Error("empty output left behind")
	}
}

func TestInvoker_ProbeFailure(t *testing.T) {
	inv := NewInvoker()
	inv.Prober = &media.Prober{Path: filepath.Join(t.TempDir(), "no-ffprobe")}
	_, err := inv.Composite(context.Background(), "a.mp4", "a_reaction.mp4")
	if !errors.Is(err, ErrEncoderFailed) || !errors.Is(err, media.ErrProbeFailed) {
		t.Errorf("error = %v, want ErrEncoderFailed wrapping ErrProbeFailed", err)
	}
}
