package media

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// ErrToolNotFound indicates a required external executable is missing.
var ErrToolNotFound = errors.New("media: executable not found")

// LookPath resolves an external tool, returning an error with install hints.
func LookPath(path string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s. %s", ErrToolNotFound, path, installationInstructions(path))
	}
	return resolved, nil
}

// CheckTools verifies every path resolves.
func CheckTools(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := LookPath(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func installationInstructions(tool string) string {
	if tool == "yt-dlp" {
		return "Install from https://github.com/yt-dlp/yt-dlp"
	}
	switch runtime.GOOS {
	case "darwin":
		return "Install with: brew install ffmpeg"
	case "linux":
		return "Install with: apt-get install ffmpeg (Ubuntu/Debian) or yum install ffmpeg (CentOS/RHEL)"
	case "windows":
		return "Download from https://ffmpeg.org/download.html and add to PATH"
	default:
		return "Download from https://ffmpeg.org/download.html"
	}
}
