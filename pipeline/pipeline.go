// Package pipeline runs trending videos through download, reaction
// capture, compositing and upload. A failure ends only the item it
// belongs to; the batch moves on to the next item.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ytreact/capture"
	"ytreact/storage"
	"ytreact/youtube"

	"github.com/google/uuid"
)

// Stage names used in results, logs and the ledger.
const (
	StageDiscover  = "discover"
	StageDownload  = "download"
	StageCapture   = "capture"
	StageComposite = "composite"
	StageUpload    = "upload"
)

// Discoverer lists trending videos.
type Discoverer interface {
	Trending(ctx context.Context, regionCode string) ([]youtube.TrendingItem, error)
}

// Downloader fetches a video into dir.
type Downloader interface {
	Download(ctx context.Context, videoID, dir string) (string, error)
}

// Recorder captures a reaction to a local video.
type Recorder interface {
	Record(ctx context.Context, sourcePath string) (*capture.Recording, error)
}

// Compositor renders the split-screen video.
type Compositor interface {
	Composite(ctx context.Context, original, reaction string) (string, error)
}

// Uploader publishes a file.
type Uploader interface {
	Upload(ctx context.Context, path string, meta youtube.UploadMetadata) (string, error)
}

// DefaultTags are attached to every published reaction.
var DefaultTags = []string{"reaction", "trending", "youtube"}

// Orchestrator wires the stages together.
type Orchestrator struct {
	Discoverer Discoverer
	Downloader Downloader
	Recorder   Recorder
	Compositor Compositor
	Uploader   Uploader

	// Ledger, if set, records outcomes and skips published items.
	Ledger *storage.Ledger
	// Force processes items the ledger marks as published.
	Force bool

	WorkDir    string
	RegionCode string
	Privacy    youtube.Privacy
	CategoryID string
	Tags       []string
}

// ItemResult is the outcome of one item.
type ItemResult struct {
	Item youtube.TrendingItem
	// Stage is the last stage attempted.
	Stage    string
	RemoteID string
	// Skipped is set when capture had no result or the item was
	// already published.
	Skipped bool
	Err     error
}

// Published reports whether the item was uploaded in this run.
func (r ItemResult) Published() bool {
	return r.RemoteID != "" && r.Err == nil
}

// Report summarises a run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Results   []ItemResult
}

// Counts returns the number of published, skipped and failed items.
func (r *Report) Counts() (published, skipped, failed int) {
	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			failed++
		case res.Skipped:
			skipped++
		case res.Published():
			published++
		}
	}
	return published, skipped, failed
}

// Run discovers trending videos and processes them in order.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	items, err := o.Discoverer.Trending(ctx, o.RegionCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageDiscover, err)
	}
	return o.Process(ctx, items)
}

// Process runs items through the stages one at a time. It returns early
// with ctx's error when ctx is cancelled; the report holds the items
// finished so far.
func (o *Orchestrator) Process(ctx context.Context, items []youtube.TrendingItem) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	log.Printf("pipeline: run %s: %d items", report.RunID, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.Printf("pipeline: [%d/%d] %s %q", i+1, len(items), item.VideoID, item.Title)

		res := o.processItem(ctx, report.RunID, item)
		report.Results = append(report.Results, res)

		switch {
		case res.Err != nil && errors.Is(res.Err, context.Canceled):
			return report, res.Err
		case res.Err != nil:
			log.Printf("pipeline: %s failed at %s: %v", item.VideoID, res.Stage, res.Err)
		case res.Skipped:
			log.Printf("pipeline: %s skipped at %s", item.VideoID, res.Stage)
		default:
			log.Printf("pipeline: %s published as %s", item.VideoID, res.RemoteID)
		}
	}
	return report, nil
}

func (o *Orchestrator) processItem(ctx context.Context, runID string, item youtube.TrendingItem) ItemResult {
	res := ItemResult{Item: item}

	if !o.Force && o.Ledger != nil && o.Ledger.Published(ctx, item.VideoID) {
		res.Stage = StageUpload
		res.Skipped = true
		return res
	}

	res.Stage = StageDownload
	original, err := o.Downloader.Download(ctx, item.VideoID, o.WorkDir)
	if err != nil {
		return o.fail(ctx, runID, res, err)
	}
	o.record(ctx, runID, item, storage.StageDownloaded, "", nil)

	if err := ctx.Err(); err != nil {
		return o.fail(ctx, runID, res, err)
	}
	res.Stage = StageCapture
	rec, err := o.Recorder.Record(ctx, original)
	if errors.Is(err, capture.ErrDeviceUnavailable) || errors.Is(err, capture.ErrNoFrames) {
		res.Skipped = true
		o.record(ctx, runID, item, storage.StageSkipped, StageCapture, err)
		return res
	}
	if err != nil {
		return o.fail(ctx, runID, res, err)
	}
	o.record(ctx, runID, item, storage.StageRecorded, "", nil)

	if err := ctx.Err(); err != nil {
		return o.fail(ctx, runID, res, err)
	}
	res.Stage = StageComposite
	split, err := o.Compositor.Composite(ctx, original, rec.Path)
	if err != nil {
		return o.fail(ctx, runID, res, err)
	}
	o.record(ctx, runID, item, storage.StageComposited, "", nil)

	if err := ctx.Err(); err != nil {
		return o.fail(ctx, runID, res, err)
	}
	res.Stage = StageUpload
	remoteID, err := o.Uploader.Upload(ctx, split, o.Metadata(item))
	if err != nil {
		return o.fail(ctx, runID, res, err)
	}
	res.RemoteID = remoteID
	o.recordEntry(ctx, &storage.Entry{
		VideoID:  item.VideoID,
		Title:    item.Title,
		Stage:    storage.StagePublished,
		RemoteID: remoteID,
		RunID:    runID,
	})
	return res
}

// Metadata derives the upload metadata of a reaction to item.
func (o *Orchestrator) Metadata(item youtube.TrendingItem) youtube.UploadMetadata {
	tags := o.Tags
	if len(tags) == 0 {
		tags = DefaultTags
	}
	return youtube.UploadMetadata{
		Title: youtube.TruncateTitle("My Reaction to Trending Video: " + item.Title),
		Description: fmt.Sprintf("Reacting to the trending video '%s'. Original: %s\n#reaction #trending",
			item.Title, youtube.ShortURL(item.VideoID)),
		Tags:       tags,
		CategoryID: o.CategoryID,
		Privacy:    o.Privacy,
	}
}

func (o *Orchestrator) fail(ctx context.Context, runID string, res ItemResult, err error) ItemResult {
	res.Err = err
	o.record(ctx, runID, res.Item, storage.StageFailed, res.Stage, err)
	return res
}

func (o *Orchestrator) record(ctx context.Context, runID string, item youtube.TrendingItem, stage storage.Stage, failedStage string, err error) {
	e := &storage.Entry{
		VideoID:     item.VideoID,
		Title:       item.Title,
		Stage:       stage,
		FailedStage: failedStage,
		RunID:       runID,
	}
	if err != nil {
		e.Error = err.Error()
	}
	o.recordEntry(ctx, e)
}

func (o *Orchestrator) recordEntry(ctx context.Context, e *storage.Entry) {
	if o.Ledger == nil {
		return
	}
	// Recording must survive a cancelled run.
	if err := o.Ledger.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Printf("pipeline: ledger: %v", err)
	}
}
