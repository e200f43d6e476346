package youtube

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/api/youtube/v3"
)

// Privacy is the privacy status of an uploaded video.
type Privacy string

const (
	PrivacyPrivate  Privacy = "private"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPublic   Privacy = "public"
)

// ParsePrivacy validates s. Empty means private.
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PrivacyPrivate, nil
	case PrivacyPrivate, PrivacyUnlisted, PrivacyPublic:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown privacy %q", ErrInvalidMetadata, s)
	}
}

// DefaultCategoryID is "People & Blogs".
const DefaultCategoryID = "22"

const maxTitleRunes = 100

// UploadMetadata describes the video resource created by an upload.
type UploadMetadata struct {
	Title       string
	Description string
	Tags        []string
	// CategoryID defaults to DefaultCategoryID.
	CategoryID string
	// Privacy defaults to PrivacyPrivate.
	Privacy Privacy
}

// Validate checks the metadata against the API's constraints.
func (m UploadMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidMetadata)
	}
	if n := utf8.RuneCountInString(m.Title); n > maxTitleRunes {
		return fmt.Errorf("%w: title is %d characters, limit is %d", ErrInvalidMetadata, n, maxTitleRunes)
	}
	if _, err := ParsePrivacy(string(m.Privacy)); err != nil {
		return err
	}
	return nil
}

// video builds the snippet+status resource sent when a session is opened.
func (m UploadMetadata) video() *youtube.Video {
	category := m.CategoryID
	if category == "" {
		category = DefaultCategoryID
	}
	privacy, _ := ParsePrivacy(string(m.Privacy))
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       m.Title,
			Description: m.Description,
			Tags:        m.Tags,
			CategoryId:  category,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: string(privacy),
		},
	}
}

// TruncateTitle shortens s to the API title limit on a rune boundary.
func TruncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxTitleRunes-1]) + "…"
}

// SplitKeywords parses a comma separated keyword list.
func SplitKeywords(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// WatchURL is the canonical watch page of a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ShortURL is the youtu.be link of a video.
func ShortURL(videoID string) string {
	return "https://youtu.be/" + videoID
}
