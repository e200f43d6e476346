package youtube

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	ythttp "ytreact/http"
	"ytreact/internal/retry"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// DefaultMaxTrending is the number of trending videos requested.
const DefaultMaxTrending = 10

// TrendingItem is one entry of the most popular chart.
type TrendingItem struct {
	Title   string
	VideoID string
}

// TrendingLister lists the most popular videos of a region using the
// YouTube Data API v3.
type TrendingLister struct {
	service *youtube.Service

	// MaxResults defaults to DefaultMaxTrending.
	MaxResults int64
	// RetryConfig paces retries of failed list calls. Nil uses
	// retry.DiscoveryConfig.
	RetryConfig *retry.Config
}

// NewTrendingLister creates a lister authenticated with apiKey. Extra
// options (endpoint, HTTP client) are passed to the API client.
func NewTrendingLister(ctx context.Context, apiKey string, opts ...option.ClientOption) (*TrendingLister, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	cfg := retry.DiscoveryConfig()
	return &TrendingLister{
		service:     service,
		MaxResults:  DefaultMaxTrending,
		RetryConfig: &cfg,
	}, nil
}

// Trending returns the current most popular videos of regionCode in chart
// order.
func (l *TrendingLister) Trending(ctx context.Context, regionCode string) ([]TrendingItem, error) {
	cfg := l.RetryConfig
	if cfg == nil {
		defaultCfg := retry.DiscoveryConfig()
		cfg = &defaultCfg
	}
	maxResults := l.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxTrending
	}

	var items []TrendingItem
	err := retry.Do(ctx, *cfg, apiErrorClassifier, func(ctx context.Context) error {
		call := l.service.Videos.List([]string{"snippet"}).
			Chart("mostPopular").
			MaxResults(maxResults).
			Context(ctx)
		if regionCode != "" {
			call = call.RegionCode(regionCode)
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}

		items = items[:0]
		for _, v := range resp.Items {
			title := ""
			if v.Snippet != nil {
				title = v.Snippet.Title
			}
			items = append(items, TrendingItem{Title: title, VideoID: v.Id})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list trending videos: %w", err)
	}

	log.Printf("youtube: %d trending videos in region %q", len(items), regionCode)
	return items, nil
}

// apiErrorClassifier retries server errors, rate limiting and transport
// failures. Other errors, including credential failures, are permanent.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if ythttp.IsRetriableStatus(gerr.Code) || gerr.Code == http.StatusTooManyRequests {
			return true
		}
		for _, e := range gerr.Errors {
			if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
				return true
			}
		}
		return false
	}

	return ythttp.IsTransportError(err)
}
