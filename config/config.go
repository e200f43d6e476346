// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration for the reaction pipeline.
type Config struct {
	// APIKey is the YouTube Data API key used for trending discovery.
	APIKey string `json:"api_key"`
	// RegionCode selects the trending chart region (e.g. "US").
	RegionCode string `json:"region_code"`
	// MaxTrending limits how many trending videos are fetched (1-50).
	MaxTrending int `json:"max_trending"`

	// ClientSecretsFile is the OAuth client secrets JSON downloaded from the console.
	ClientSecretsFile string `json:"client_secrets_file"`
	// TokenFile stores the OAuth token. Empty means "{program}-oauth2.json".
	TokenFile string `json:"token_file"`
	// OAuthListenAddr is the loopback address for the OAuth callback.
	OAuthListenAddr string `json:"oauth_listen_addr"`

	// WorkDir holds downloaded, recorded and composited files.
	WorkDir string `json:"work_dir"`
	// LedgerPath is the run ledger file. Empty disables the ledger.
	LedgerPath string `json:"ledger_path"`

	// YtdlpPath is the path to the yt-dlp executable (default: "yt-dlp")
	YtdlpPath string `json:"ytdlp_path"`
	// DownloadTimeout bounds a single yt-dlp download.
	DownloadTimeout time.Duration `json:"download_timeout"`
	// FFmpegPath, FFprobePath and FFplayPath locate the ffmpeg tools.
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
	FFplayPath  string `json:"ffplay_path"`

	// CaptureFormat is the ffmpeg input format of the camera (v4l2, avfoundation, dshow).
	CaptureFormat string `json:"capture_format"`
	// CaptureDevice is the camera address for CaptureFormat (e.g. "/dev/video0").
	CaptureDevice string `json:"capture_device"`
	// Preview shows the original video to the operator while recording.
	Preview bool `json:"preview"`
	// QueueDepth bounds frames buffered per capture source.
	QueueDepth int `json:"queue_depth"`

	// VideoCodec and AudioCodec are used for the split-screen composite.
	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`

	// UploadEndpoint is the resumable upload URL of the videos resource.
	UploadEndpoint string `json:"upload_endpoint"`
	// ChunkSize is the upload chunk size in bytes (0 = whole file per request).
	ChunkSize int64 `json:"chunk_size"`
	// RequestsPerSecond paces upload requests (0 = unlimited).
	RequestsPerSecond float64 `json:"requests_per_second"`
	// Privacy is the privacy status of published videos.
	Privacy string `json:"privacy"`
	// CategoryID is the YouTube category of published videos.
	CategoryID string `json:"category_id"`
	// Tags are applied to published videos.
	Tags []string `json:"tags"`

	// MaxRetries is the maximum number of retries for a failed upload chunk.
	MaxRetries int `json:"max_retries"`
	// BackoffBase is the exponential base; retry n waits BackoffUnit * BackoffBase^n.
	BackoffBase float64 `json:"backoff_base"`
	// BackoffUnit scales the backoff schedule.
	BackoffUnit time.Duration `json:"backoff_unit"`

	// DiscoveryMaxRetries, DiscoveryBackoffBase and DiscoveryBackoffUnit
	// pace retries of the trending list call.
	DiscoveryMaxRetries  int           `json:"discovery_max_retries"`
	DiscoveryBackoffBase float64       `json:"discovery_backoff_base"`
	DiscoveryBackoffUnit time.Duration `json:"discovery_backoff_unit"`
}

// DefaultUploadEndpoint is the YouTube Data API v3 resumable upload URL.
const DefaultUploadEndpoint = "https://www.googleapis.com/upload/youtube/v3/videos"

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		RegionCode:        "US",
		MaxTrending:       10,
		ClientSecretsFile: "client_secrets.json",
		OAuthListenAddr:   "127.0.0.1:8080",
		WorkDir:           ".",
		LedgerPath:        "ytreact-ledger.json",
		YtdlpPath:         "yt-dlp",
		DownloadTimeout:   30 * time.Minute,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		FFplayPath:        "ffplay",
		CaptureFormat:     "v4l2",
		CaptureDevice:     "/dev/video0",
		Preview:           true,
		QueueDepth:        2,
		VideoCodec:        "libx264",
		AudioCodec:        "aac",
		UploadEndpoint:    DefaultUploadEndpoint,
		ChunkSize:         8 << 20,
		RequestsPerSecond: 2,
		Privacy:           "private",
		CategoryID:        "22",
		Tags:              []string{"reaction", "trending", "youtube"},
		MaxRetries:        10,
		BackoffBase:       5,
		BackoffUnit:       time.Second,

		DiscoveryMaxRetries:  3,
		DiscoveryBackoffBase: 2,
		DiscoveryBackoffUnit: time.Second,
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytreact.json in current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytreact.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytreact", "ytreact.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with YTREACT_* environment variables.
// Malformed numeric or duration values are reported rather than ignored.
func (c *Config) loadFromEnv() error {
	strs := map[string]*string{
		"YTREACT_API_KEY":             &c.APIKey,
		"YTREACT_REGION_CODE":         &c.RegionCode,
		"YTREACT_CLIENT_SECRETS_FILE": &c.ClientSecretsFile,
		"YTREACT_TOKEN_FILE":          &c.TokenFile,
		"YTREACT_OAUTH_LISTEN_ADDR":   &c.OAuthListenAddr,
		"YTREACT_WORK_DIR":            &c.WorkDir,
		"YTREACT_LEDGER_PATH":         &c.LedgerPath,
		"YTREACT_YTDLP_PATH":          &c.YtdlpPath,
		"YTREACT_FFMPEG_PATH":         &c.FFmpegPath,
		"YTREACT_FFPROBE_PATH":        &c.FFprobePath,
		"YTREACT_FFPLAY_PATH":         &c.FFplayPath,
		"YTREACT_CAPTURE_FORMAT":      &c.CaptureFormat,
		"YTREACT_CAPTURE_DEVICE":      &c.CaptureDevice,
		"YTREACT_VIDEO_CODEC":         &c.VideoCodec,
		"YTREACT_AUDIO_CODEC":         &c.AudioCodec,
		"YTREACT_UPLOAD_ENDPOINT":     &c.UploadEndpoint,
		"YTREACT_PRIVACY":             &c.Privacy,
		"YTREACT_CATEGORY_ID":         &c.CategoryID,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("YTREACT_TAGS"); v != "" {
		c.Tags = splitTags(v)
	}
	if v := os.Getenv("YTREACT_PREVIEW"); v != "" {
		c.Preview = v == "true" || v == "1"
	}

	ints := map[string]*int{
		"YTREACT_MAX_TRENDING": &c.MaxTrending,
		"YTREACT_QUEUE_DEPTH":  &c.QueueDepth,
		"YTREACT_MAX_RETRIES":  &c.MaxRetries,

		"YTREACT_DISCOVERY_MAX_RETRIES": &c.DiscoveryMaxRetries,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("YTREACT_CHUNK_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("YTREACT_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}

	floats := map[string]*float64{
		"YTREACT_REQUESTS_PER_SECOND": &c.RequestsPerSecond,
		"YTREACT_BACKOFF_BASE":        &c.BackoffBase,

		"YTREACT_DISCOVERY_BACKOFF_BASE": &c.DiscoveryBackoffBase,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}

	durations := map[string]*time.Duration{
		"YTREACT_BACKOFF_UNIT":     &c.BackoffUnit,
		"YTREACT_DOWNLOAD_TIMEOUT": &c.DownloadTimeout,

		"YTREACT_DISCOVERY_BACKOFF_UNIT": &c.DiscoveryBackoffUnit,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// uploadChunkAlign is the granularity YouTube requires for non-final chunks.
const uploadChunkAlign = 256 << 10

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	if c.MaxTrending < 1 || c.MaxTrending > 50 {
		return fmt.Errorf("max_trending must be between 1 and 50")
	}
	if c.RegionCode == "" {
		return fmt.Errorf("region_code must be set")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir must be set")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download_timeout must be positive")
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("queue_depth must be at least 1")
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative")
	}
	if c.ChunkSize%uploadChunkAlign != 0 {
		return fmt.Errorf("chunk_size must be a multiple of %d bytes", uploadChunkAlign)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative")
	}
	switch c.Privacy {
	case "private", "unlisted", "public":
	default:
		return fmt.Errorf("privacy must be one of private, unlisted, public (got %q)", c.Privacy)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.BackoffBase < 1 {
		return fmt.Errorf("backoff_base must be >= 1")
	}
	if c.BackoffUnit <= 0 {
		return fmt.Errorf("backoff_unit must be positive")
	}
	if c.DiscoveryMaxRetries < 0 {
		return fmt.Errorf("discovery_max_retries must be non-negative")
	}
	if c.DiscoveryBackoffBase < 1 {
		return fmt.Errorf("discovery_backoff_base must be >= 1")
	}
	if c.DiscoveryBackoffUnit <= 0 {
		return fmt.Errorf("discovery_backoff_unit must be positive")
	}
	return nil
}

// UnmarshalJSON reads durations as Go duration strings ("1s", "30m"), the
// same format the environment accepts. Plain numbers are nanoseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		DownloadTimeout      duration `json:"download_timeout"`
		BackoffUnit          duration `json:"backoff_unit"`
		DiscoveryBackoffUnit duration `json:"discovery_backoff_unit"`
	}{
		plain:                (*plain)(c),
		DownloadTimeout:      duration(c.DownloadTimeout),
		BackoffUnit:          duration(c.BackoffUnit),
		DiscoveryBackoffUnit: duration(c.DiscoveryBackoffUnit),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.DownloadTimeout = time.Duration(aux.DownloadTimeout)
	c.BackoffUnit = time.Duration(aux.BackoffUnit)
	c.DiscoveryBackoffUnit = time.Duration(aux.DiscoveryBackoffUnit)
	return nil
}

type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %s", data)
	}
	*d = duration(n)
	return nil
}

// TokenPath returns TokenFile, or "{program}-oauth2.json" next to the
// working directory when unset.
func (c *Config) TokenPath(program string) string {
	if c.TokenFile != "" {
		return c.TokenFile
	}
	return filepath.Base(program) + "-oauth2.json"
}

// splitTags parses a comma separated keyword list.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
