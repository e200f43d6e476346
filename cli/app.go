package main

import (
	"context"
	"os"
	"time"

	"ytreact/auth"
	"ytreact/capture"
	"ytreact/composite"
	"ytreact/config"
	ythttp "ytreact/http"
	"ytreact/internal/media"
	"ytreact/internal/retry"
	"ytreact/youtube"
)

const programName = "ytreact"

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("loading config: %v", err)
	}
	return cfg
}

func newDownloader(cfg *config.Config) *youtube.Downloader {
	d := youtube.NewDownloader()
	d.Path = cfg.YtdlpPath
	d.Timeout = cfg.DownloadTimeout
	return d
}

func newProber(cfg *config.Config) *media.Prober {
	return &media.Prober{Path: cfg.FFprobePath}
}

func newSynchronizer(cfg *config.Config, noPreview bool) *capture.Synchronizer {
	backend := capture.NewFFmpeg()
	backend.FFmpegPath = cfg.FFmpegPath
	backend.FFplayPath = cfg.FFplayPath
	backend.Prober = newProber(cfg)
	backend.DeviceFormat = cfg.CaptureFormat
	backend.Device = cfg.CaptureDevice

	s := capture.NewSynchronizer(backend)
	s.QueueDepth = cfg.QueueDepth
	s.Preview = cfg.Preview && !noPreview
	s.StopSignal = capture.WatchKeyboard(os.Stdin, "q").Stop
	return s
}

func newInvoker(cfg *config.Config) *composite.Invoker {
	inv := composite.NewInvoker()
	inv.FFmpegPath = cfg.FFmpegPath
	inv.Prober = newProber(cfg)
	inv.VideoCodec = cfg.VideoCodec
	inv.AudioCodec = cfg.AudioCodec
	return inv
}

func newTrendingLister(ctx context.Context, cfg *config.Config) *youtube.TrendingLister {
	l, err := youtube.NewTrendingLister(ctx, cfg.APIKey)
	if err != nil {
		fatal("%v (set api_key or YTREACT_API_KEY)", err)
	}
	l.MaxResults = int64(cfg.MaxTrending)
	l.RetryConfig = &retry.Config{
		MaxRetries: cfg.DiscoveryMaxRetries,
		Base:       cfg.DiscoveryBackoffBase,
		Unit:       cfg.DiscoveryBackoffUnit,
	}
	return l
}

func retryConfig(cfg *config.Config) retry.Config {
	return retry.Config{
		MaxRetries: cfg.MaxRetries,
		Base:       cfg.BackoffBase,
		Unit:       cfg.BackoffUnit,
	}
}

// newUploader authorizes with the cached token, running the consent flow
// when there is none.
func newUploader(ctx context.Context, cfg *config.Config) *youtube.Uploader {
	flow, err := auth.NewFlow(cfg.ClientSecretsFile, cfg.TokenPath(programName), cfg.OAuthListenAddr)
	if err != nil {
		fatal("%v", err)
	}
	oauthClient, err := flow.Client(ctx)
	if err != nil {
		fatal("authorizing uploads: %v", err)
	}

	httpCfg := ythttp.DefaultConfig()
	httpCfg.RateLimiter.RPS = cfg.RequestsPerSecond
	client := ythttp.New(httpCfg, oauthClient)

	up := youtube.NewUploader(client, cfg.UploadEndpoint)
	up.ChunkSize = cfg.ChunkSize
	up.Retry = retryConfig(cfg)
	up.OnProgress = youtube.NewProgressBar(os.Stderr, "uploading")
	return up
}

func privacy(cfg *config.Config) youtube.Privacy {
	p, err := youtube.ParsePrivacy(cfg.Privacy)
	if err != nil {
		fatal("%v", err)
	}
	return p
}

func checkTools(paths ...string) {
	if err := media.CheckTools(paths...); err != nil {
		fatal("%v", err)
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
