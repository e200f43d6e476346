package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"ytreact/auth"
	"ytreact/internal/media"
	"ytreact/pipeline"
	"ytreact/storage"
	"ytreact/youtube"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		cmdRun(ctx, args)
	case "trending":
		cmdTrending(ctx, args)
	case "download":
		cmdDownload(ctx, args)
	case "record":
		cmdRecord(ctx, args)
	case "composite":
		cmdComposite(ctx, args)
	case "upload":
		cmdUpload(ctx, args)
	case "auth":
		cmdAuth(ctx, args)
	case "ledger":
		cmdLedger(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytreact - record and publish reactions to trending YouTube videos

Usage:
  ytreact run [flags]                          Discover, download, record, composite and upload
  ytreact trending [flags]                     List trending videos
  ytreact download [flags] <video-id>          Download a video as {id}.mp4
  ytreact record [flags] <video-file>          Record a reaction while the video plays
  ytreact composite <video-file>               Render {id}_split.mp4 from {id}.mp4 and {id}_reaction.mp4
  ytreact upload [flags] <file>                Upload a file
  ytreact auth                                 Authorize uploads and cache the token
  ytreact ledger                               Show processed videos
  ytreact help                                 Show this help message

While recording, type q and Enter to stop.

Examples:
  ytreact run                                  # Process the top 10 US trending videos
  ytreact run --region GB --max 3              # Top 3 in the UK
  ytreact record --no-preview dQw4w9WgXcQ.mp4  # Record without the preview window
  ytreact upload --title "Hello" video.mp4     # Upload as private

For help on specific command: ytreact <command> -h
`)
}

func cmdRun(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	region := fs.String("region", "", "Trending chart region (default from config)")
	maxItems := fs.Int("max", 0, "Maximum trending videos (default from config)")
	force := fs.Bool("force", false, "Process videos the ledger marks as published")
	noPreview := fs.Bool("no-preview", false, "Do not show the video while recording")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact run [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg := loadConfig()
	if *region != "" {
		cfg.RegionCode = *region
	}
	if *maxItems > 0 {
		cfg.MaxTrending = *maxItems
	}
	checkTools(cfg.YtdlpPath, cfg.FFmpegPath, cfg.FFprobePath)
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		fatal("creating work dir: %v", err)
	}

	o := &pipeline.Orchestrator{
		Discoverer: newTrendingLister(ctx, cfg),
		Downloader: newDownloader(cfg),
		Recorder:   newSynchronizer(cfg, *noPreview),
		Compositor: newInvoker(cfg),
		Uploader:   newUploader(ctx, cfg),
		Force:      *force,
		WorkDir:    cfg.WorkDir,
		RegionCode: cfg.RegionCode,
		Privacy:    privacy(cfg),
		CategoryID: cfg.CategoryID,
		Tags:       cfg.Tags,
	}
	if cfg.LedgerPath != "" {
		ledger, err := storage.OpenLedger(ctx, cfg.LedgerPath)
		if err != nil {
			fatal("opening ledger: %v", err)
		}
		defer ledger.Close()
		o.Ledger = ledger
	}

	header("ytreact: trending in %s", cfg.RegionCode)
	info("Type q and Enter to stop a recording.")
	report, err := o.Run(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, skipStyle.Render("Interrupted."))
			return
		}
		fatal("%v", err)
	}
}

func printReport(report *pipeline.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tTITLE\tRESULT\tDETAIL")
	for _, res := range report.Results {
		var result, detail string
		switch {
		case res.Err != nil:
			result = errorStyle.Render("failed")
			detail = res.Stage + ": " + res.Err.Error()
		case res.Skipped:
			result = skipStyle.Render("skipped")
			detail = res.Stage
		default:
			result = successStyle.Render("published")
			detail = youtube.WatchURL(res.RemoteID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Item.VideoID, truncate(res.Item.Title, 40), result, detail)
	}
	w.Flush()

	published, skipped, failed := report.Counts()
	fmt.Fprintf(os.Stderr, "\nRun %s: %d published, %d skipped, %d failed in %s\n",
		report.RunID, published, skipped, failed, formatDuration(report.Duration))
}

func cmdTrending(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("trending", flag.ExitOnError)
	region := fs.String("region", "", "Trending chart region (default from config)")
	maxItems := fs.Int("max", 0, "Maximum videos (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact trending [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg := loadConfig()
	if *region != "" {
		cfg.RegionCode = *region
	}
	if *maxItems > 0 {
		cfg.MaxTrending = *maxItems
	}

	items, err := newTrendingLister(ctx, cfg).Trending(ctx, cfg.RegionCode)
	if err != nil {
		fatal("fetching trending videos: %v", err)
	}
	if len(items) == 0 {
		fmt.Println("No trending videos found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tVIDEO ID\tTITLE")
	for i, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, item.VideoID, truncate(item.Title, 60))
	}
	w.Flush()
}

func cmdDownload(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	outputDir := fs.String("dir", "", "Directory to save video (default: work dir)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact download [flags] <video-id>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-id\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig()
	dir := *outputDir
	if dir == "" {
		dir = cfg.WorkDir
	}

	info("Downloading %s...", argv[0])
	path, err := newDownloader(cfg).Download(ctx, argv[0], dir)
	if err != nil {
		fatal("%v", err)
	}
	success("Saved %s", path)
}

func cmdRecord(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	noPreview := fs.Bool("no-preview", false, "Do not show the video while recording")
	device := fs.String("device", "", "Capture device (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact record [flags] <video-file>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-file\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig()
	if *device != "" {
		cfg.CaptureDevice = *device
	}
	checkTools(cfg.FFmpegPath, cfg.FFprobePath)

	info("Recording reaction to %s. Type q and Enter to stop.", argv[0])
	rec, err := newSynchronizer(cfg, *noPreview).Record(ctx, argv[0])
	if err != nil {
		fatal("%v", err)
	}
	success("Recorded %d frames to %s", rec.Frames, rec.Path)
}

func cmdComposite(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("composite", flag.ExitOnError)
	reaction := fs.String("reaction", "", "Reaction file (default: {id}_reaction.mp4)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact composite [flags] <video-file>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-file\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig()
	checkTools(cfg.FFmpegPath, cfg.FFprobePath)

	original := argv[0]
	if *reaction == "" {
		*reaction = media.ReactionPath(original)
	}
	out, err := newInvoker(cfg).Composite(ctx, original, *reaction)
	if err != nil {
		fatal("%v", err)
	}
	success("Wrote %s", out)
}

func cmdUpload(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	title := fs.String("title", "", "Video title (required)")
	description := fs.String("description", "", "Video description")
	keywords := fs.String("keywords", "", "Comma separated tags")
	category := fs.String("category", "", "Category id (default from config)")
	privacyFlag := fs.String("privacy", "", "private, unlisted or public (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact upload [flags] <file>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 || *title == "" {
		fmt.Fprintf(os.Stderr, "Error: missing file or --title\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig()
	if *privacyFlag != "" {
		cfg.Privacy = *privacyFlag
	}
	if *category != "" {
		cfg.CategoryID = *category
	}

	meta := youtube.UploadMetadata{
		Title:       *title,
		Description: *description,
		Tags:        youtube.SplitKeywords(*keywords),
		CategoryID:  cfg.CategoryID,
		Privacy:     privacy(cfg),
	}
	id, err := newUploader(ctx, cfg).Upload(ctx, argv[0], meta)
	if err != nil {
		var upErr *youtube.UploadError
		if errors.As(err, &upErr) && upErr.Kind == youtube.KindFatalHTTP {
			fatal("upload rejected with status %d: %v", upErr.StatusCode, err)
		}
		fatal("%v", err)
	}
	success("Uploaded %s", youtube.WatchURL(id))
}

func cmdAuth(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytreact auth\n\nRuns the consent flow and caches the token.\n")
	}
	fs.Parse(args)

	cfg := loadConfig()
	flow, err := auth.NewFlow(cfg.ClientSecretsFile, cfg.TokenPath(programName), cfg.OAuthListenAddr)
	if err != nil {
		fatal("%v", err)
	}
	if _, err := flow.Authorize(ctx); err != nil {
		fatal("%v", err)
	}
	success("Token saved to %s", flow.TokenFile)
}

func cmdLedger(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	fs.Parse(args)

	cfg := loadConfig()
	if cfg.LedgerPath == "" {
		fatal("ledger disabled (ledger_path is empty)")
	}
	ledger, err := storage.OpenLedger(ctx, cfg.LedgerPath)
	if err != nil {
		fatal("opening ledger: %v", err)
	}
	defer ledger.Close()

	entries, err := ledger.List(ctx)
	if err != nil {
		fatal("%v", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tSTAGE\tREMOTE ID\tATTEMPTS\tUPDATED\tTITLE")
	for _, e := range entries {
		stage := string(e.Stage)
		if e.FailedStage != "" {
			stage += " (" + e.FailedStage + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.VideoID, stage, e.RemoteID, e.Attempts, e.UpdatedAt.Format("2006-01-02 15:04"), truncate(e.Title, 40))
	}
	w.Flush()
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}
