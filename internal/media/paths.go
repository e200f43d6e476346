// Package media holds the artifact naming convention shared by every
// pipeline stage and the ffprobe wrapper used to inspect media files and
// capture devices.
package media

import (
	"path/filepath"
	"strings"
)

// Artifact naming. These names are a contract between stages and must not
// change: {id}.mp4 -> {id}_reaction.mp4 -> {id}_split.mp4.
const (
	Ext            = ".mp4"
	ReactionSuffix = "_reaction"
	SplitSuffix    = "_split"
)

// OriginalPath returns the download target for videoID inside dir.
func OriginalPath(dir, videoID string) string {
	return filepath.Join(dir, videoID+Ext)
}

// ReactionPath derives the reaction recording path from the original.
func ReactionPath(original string) string {
	return withSuffix(original, ReactionSuffix)
}

// SplitPath derives the split-screen composite path from the original.
func SplitPath(original string) string {
	return withSuffix(original, SplitSuffix)
}

func withSuffix(path, suffix string) string {
	return strings.TrimSuffix(path, Ext) + suffix + Ext
}
