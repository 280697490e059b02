package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

const userAgent = "WasteWatch/1.0 (+https://github.com/bilgisen/wastewatch)"

type Fetcher struct {
	client      *resty.Client
	timeout     time.Duration
	concurrency int
}

func NewFetcher(timeout time.Duration, concurrency int) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(500*time.Millisecond).
			SetRetryMaxWaitTime(2*time.Second).
			SetHeader("User-Agent", userAgent),
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// FetchResult is the outcome for one source.
type FetchResult struct {
	Source models.FeedSource
	Feed   *gofeed.Feed
	Err    error
}

// FetchFeed retrieves and parses one RSS/Atom/JSON feed.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed from %s: %w", url, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), url)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed from %s: %w", url, err)
	}
	return parsed, nil
}

// FetchMultipleFeeds fetches sources concurrently. Results keep source order
// and a failed source never affects the others.
func (f *Fetcher) FetchMultipleFeeds(ctx context.Context, sources []models.FeedSource) []FetchResult {
	results := make([]FetchResult, len(sources))
	semaphore := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src models.FeedSource) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results[i] = FetchResult{Source: src, Err: ctx.Err()}
				return
			}
			defer func() { <-semaphore }()

			parsed, err := f.FetchFeed(ctx, src.URL)
			results[i] = FetchResult{Source: src, Feed: parsed, Err: err}
		}(i, src)
	}

	wg.Wait()
	return results
}
