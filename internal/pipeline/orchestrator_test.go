package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/wastewatch/internal/ai"
	"github.com/bilgisen/wastewatch/internal/cache"
	"github.com/bilgisen/wastewatch/internal/feed"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/publish"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sewageFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Coast News</title>
<item>
  <title>Sewage Spill Closes Beach</title>
  <link>https://news.example.com/sewage-spill</link>
  <description>Untreated wastewater reached the shore overnight.</description>
</item>
<item>
  <title>Local Team Wins Cup</title>
  <link>https://news.example.com/cup</link>
  <description>A thrilling final.</description>
</item>
</channel></rss>`

type blockingIngester struct {
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (b *blockingIngester) Ingest(ctx context.Context, _ []models.FeedSource) (*feed.IngestResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	close(b.started)
	<-b.release
	return &feed.IngestResult{}, nil
}

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, []models.FeedSource) (*feed.IngestResult, error) {
	return nil, errors.New("store unavailable")
}

type nopGenerator struct{ calls int }

func (g *nopGenerator) GeneratePending(context.Context, int, ai.Options) (*ai.BatchResult, error) {
	g.calls++
	return &ai.BatchResult{}, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishMany(context.Context, []uint) *publish.BatchResult {
	return &publish.BatchResult{}
}
func (nopPublisher) Configured() bool { return false }

func TestRunOnceRejectsOverlap(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := &blockingIngester{started: make(chan struct{}), release: make(chan struct{})}
	o := New(store, ing, &nopGenerator{}, nopPublisher{}, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := o.RunOnce(context.Background(), models.TriggerScheduled)
		done <- err
	}()
	<-ing.started
	assert.True(t, o.IsProcessing())

	_, err := o.RunOnce(context.Background(), models.TriggerManual)
	assert.ErrorIs(t, err, models.ErrRunInProgress)

	err = o.Exclusive(context.Background(), func(context.Context) error {
		t.Fatal("exclusive stage ran during a run")
		return nil
	})
	assert.ErrorIs(t, err, models.ErrRunInProgress)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	close(ing.release)
	require.NoError(t, <-done)
	assert.False(t, o.IsProcessing())
	assert.Equal(t, 1, ing.calls)

	runs, err = store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.TriggerScheduled, runs[0].Trigger)
}

func TestRunOnceRecordsFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	gen := &nopGenerator{}
	o := New(store, failingIngester{}, gen, nopPublisher{}, Config{AutoGenerate: true})

	summary, err := o.RunOnce(context.Background(), models.TriggerManual)
	require.Error(t, err)
	assert.Equal(t, models.RunFailed, summary.Run.Status)
	assert.Equal(t, StageIngest, summary.Run.Stage)
	assert.Equal(t, 0, gen.calls)

	st := o.Status()
	require.NotNil(t, st.LastRun)
	assert.Equal(t, models.RunFailed, st.LastRun.Status)
}

func TestEndToEndOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sewageFeed))
	}))
	defer srv.Close()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	processor := feed.NewProcessor(store, cache.NewMemoryCache(time.Hour),
		feed.NewFetcher(2*time.Second, 2),
		feed.NewRelevanceFilter([]string{"wastewater"}),
		nil, feed.Options{})
	generator := ai.NewGenerator(store, nil, ai.GeneratorConfig{Fallback: true})
	publisher := publish.NewPublisher(store, nil, time.Second)

	o := New(store, processor, generator, publisher, Config{
		Sources:      []models.FeedSource{{Name: "Coast", URL: srv.URL}, {Name: "Broken", URL: "http://127.0.0.1:1/rss"}},
		AutoGenerate: true,
		AutoPublish:  true,
		MaxPerRun:    10,
	})

	summary, err := o.RunOnce(ctx, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Run.Found)
	assert.Equal(t, 2, summary.Run.New)
	assert.Equal(t, 1, summary.Run.Generated)
	assert.Equal(t, 0, summary.Run.Published, "simulated publishing is not automatic")
	assert.Equal(t, models.RunPartial, summary.Run.Status)
	require.Len(t, summary.Ingestion.Errors, 1)
	assert.Equal(t, "Broken", summary.Ingestion.Errors[0].Source)

	filtered, err := store.ListArticlesByStatus(ctx, models.ArticleFilteredOut, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Local Team Wins Cup", filtered[0].Title)

	drafts, err := store.ListDraftsByStatus(ctx, models.DraftDraft, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.True(t, drafts[0].Simulated)

	res, err := publisher.Publish(ctx, drafts[0].ID, false)
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	assert.Equal(t, models.DraftPublished, res.Draft.Status)
	assert.NotEmpty(t, res.Draft.RemoteID)

	again, err := o.RunOnce(ctx, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Run.New)
	assert.Equal(t, 0, again.Run.Generated)
}

func TestSchedulerLifecycle(t *testing.T) {
	o := New(storage.NewMemoryStore(), &feedlessIngester{}, &nopGenerator{}, nopPublisher{}, Config{})

	assert.Error(t, o.Start(0))
	assert.False(t, o.Status().Running)

	require.NoError(t, o.Start(30*time.Minute))
	st := o.Status()
	assert.True(t, st.Running)
	assert.Equal(t, 30, st.IntervalMinutes)
	assert.Equal(t, "Every 30 minutes", st.Interval)
	require.NotNil(t, st.NextRun)

	require.NoError(t, o.Start(45*time.Minute))
	assert.Equal(t, 45, o.Status().IntervalMinutes)

	o.Stop()
	o.Stop()
	st = o.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.NextRun)
}

func TestDescribeInterval(t *testing.T) {
	assert.Equal(t, "Every 60 minutes", describeInterval(time.Hour))
	assert.Equal(t, "Every 1m30s", describeInterval(90*time.Second))
	assert.Equal(t, "Every 20ms", describeInterval(20*time.Millisecond))

	o := New(storage.NewMemoryStore(), &feedlessIngester{}, &nopGenerator{}, nopPublisher{}, Config{})
	require.NoError(t, o.Start(45*time.Second))
	defer o.Stop()
	st := o.Status()
	assert.Equal(t, "Every 45s", st.Interval)
	assert.Equal(t, 0, st.IntervalMinutes)
}

func TestSchedulerTicksRun(t *testing.T) {
	store := storage.NewMemoryStore()
	o := New(store, &feedlessIngester{}, &nopGenerator{}, nopPublisher{}, Config{RunTimeout: time.Second})

	require.NoError(t, o.Start(20*time.Millisecond))
	assert.Eventually(t, func() bool {
		runs, err := store.ListRuns(context.Background(), 1)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	o.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))

	runs, err := store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerScheduled, runs[0].Trigger)
	assert.Equal(t, models.RunSuccess, runs[0].Status)
}

type feedlessIngester struct{}

func (feedlessIngester) Ingest(context.Context, []models.FeedSource) (*feed.IngestResult, error) {
	return &feed.IngestResult{}, nil
}
