// Package ytreact records and publishes reactions to trending YouTube videos.
//
// # Overview
//
// A run walks the trending chart for a region and, for each video, downloads
// it, plays it while recording the camera in lockstep, renders the two side
// by side and uploads the result:
//
//   - youtube: trending discovery, yt-dlp downloads, resumable uploads
//   - capture: frame-synchronized playback and camera recording
//   - composite: ffmpeg hstack/amerge rendering
//   - pipeline: the per-item orchestrator
//
// Artifacts for a video id live in the work directory as {id}.mp4,
// {id}_reaction.mp4 and {id}_split.mp4.
//
// Quick Start
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	lister, err := youtube.NewTrendingLister(ctx, cfg.APIKey)
//	if err != nil {
//		log.Fatal(err)
//	}
//	o := &pipeline.Orchestrator{
//		Discoverer: lister,
//		Downloader: youtube.NewDownloader(),
//		Recorder:   capture.NewSynchronizer(capture.NewFFmpeg()),
//		Compositor: composite.NewInvoker(),
//		Uploader:   uploader,
//		WorkDir:    cfg.WorkDir,
//		RegionCode: cfg.RegionCode,
//	}
//	report, err := o.Run(ctx)
//
// # Configuration
//
// Settings load from defaults, then ytreact.json (or
// ~/.config/ytreact/ytreact.json), then YTREACT_* environment variables.
// Uploads need an OAuth client secrets file; the token is cached next to
// it as ytreact-oauth2.json.
//
// # Error Handling
//
// Upload failures carry a kind:
//
//	var upErr *ytreact.UploadError
//	if errors.As(err, &upErr) && upErr.Kind == youtube.KindRetriesExhausted {
//		fmt.Printf("gave up after %d retries\n", upErr.Retries)
//	}
//
// # Dependencies
//
// ffmpeg, ffprobe and yt-dlp must be installed. ffplay is optional and only
// used for the preview window.
package ytreact
