package composite

import (
	"fmt"
	"math"
	"strings"

	"ytreact/internal/media"
)

// Layout places two inputs side by side, each scaled to half its width
// with its aspect ratio kept. Sizes are even, as the encoders require.
type Layout struct {
	LeftWidth, LeftHeight   int
	RightWidth, RightHeight int
	// Width and Height are the output size. Height is the taller side;
	// the other side is padded to it.
	Width, Height int
}

// NewLayout computes the layout of original (left) and reaction (right).
func NewLayout(original, reaction media.StreamInfo) (Layout, error) {
	lw, lh, err := halfSize(original)
	if err != nil {
		return Layout{}, fmt.Errorf("original: %w", err)
	}
	rw, rh, err := halfSize(reaction)
	if err != nil {
		return Layout{}, fmt.Errorf("reaction: %w", err)
	}
	return Layout{
		LeftWidth:   lw,
		LeftHeight:  lh,
		RightWidth:  rw,
		RightHeight: rh,
		Width:       lw + rw,
		Height:      max(lh, rh),
	}, nil
}

func halfSize(info media.StreamInfo) (int, int, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid frame size %dx%d", info.Width, info.Height)
	}
	w := even(float64(info.Width) / 2)
	h := even(float64(w) * float64(info.Height) / float64(info.Width))
	return w, h, nil
}

// even rounds to the nearest even integer, never below 2.
func even(v float64) int {
	n := int(math.Round(v/2)) * 2
	if n < 2 {
		n = 2
	}
	return n
}

// AudioMode selects how the audio of the two inputs reaches the output.
type AudioMode int

const (
	// AudioMerge merges both inputs' audio.
	AudioMerge AudioMode = iota
	// AudioOriginal maps only the original's audio.
	AudioOriginal
	// AudioReaction maps only the reaction's audio.
	AudioReaction
	// AudioNone produces a silent output.
	AudioNone
)

func (m AudioMode) String() string {
	switch m {
	case AudioMerge:
		return "merge"
	case AudioOriginal:
		return "original"
	case AudioReaction:
		return "reaction"
	case AudioNone:
		return "none"
	default:
		return fmt.Sprintf("AudioMode(%d)", int(m))
	}
}

// ChooseAudio merges only when both inputs carry audio.
func ChooseAudio(originalHasAudio, reactionHasAudio bool) AudioMode {
	switch {
	case originalHasAudio && reactionHasAudio:
		return AudioMerge
	case originalHasAudio:
		return AudioOriginal
	case reactionHasAudio:
		return AudioReaction
	default:
		return AudioNone
	}
}

// FilterGraph builds the -filter_complex value. The stacked video is
// labelled [v]; merged audio, if any, is labelled [a].
func FilterGraph(l Layout, audio AudioMode) string {
	var b strings.Builder
	b.WriteString("[0:v]" + scaleFilter(l.LeftWidth, l.LeftHeight, l.Height) + "[vid1];")
	b.WriteString("[1:v]" + scaleFilter(l.RightWidth, l.RightHeight, l.Height) + "[vid2];")
	b.WriteString("[vid1][vid2]hstack=inputs=2[v]")
	if audio == AudioMerge {
		b.WriteString(";[0:a][1:a]amerge=inputs=2[a]")
	}
	return b.String()
}

func scaleFilter(w, h, height int) string {
	f := fmt.Sprintf("scale=%d:%d", w, h)
	if h < height {
		f += fmt.Sprintf(",pad=%d:%d:0:(oh-ih)/2", w, height)
	}
	return f
}
