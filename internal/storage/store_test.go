package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type StoreSuite struct {
	suite.Suite
	newStore func() (Store, error)
	store    Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	store, err := s.newStore()
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() (Store, error) { return NewMemoryStore(), nil }})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() (Store, error) { return Open("sqlite", ":memory:") }})
}

func (s *StoreSuite) article(url string, status models.ArticleStatus) *models.Article {
	a := &models.Article{
		SourceURL:  url,
		SourceName: "Test Feed",
		Title:      "Sewage Spill Closes Beach",
		Summary:    "Untreated wastewater reached the shore.",
		Status:     status,
	}
	created, err := s.store.UpsertArticleByURL(s.ctx, a)
	s.Require().NoError(err)
	s.Require().True(created)
	return a
}

func (s *StoreSuite) draft(articleID uint) *models.Draft {
	d := &models.Draft{ArticleID: articleID, Headline: "Water Watch", Body: "<p>x</p>", Tags: []string{"sewage"}}
	s.Require().NoError(s.store.CreateDraft(s.ctx, d, false))
	return d
}

func (s *StoreSuite) TestUpsertIsIdempotentByURL() {
	first := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	s.NotZero(first.ID)

	again := &models.Article{SourceURL: "https://example.com/a", Title: "changed", Status: models.ArticleFilteredOut}
	created, err := s.store.UpsertArticleByURL(s.ctx, again)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, again.ID)
	s.Equal("Sewage Spill Closes Beach", again.Title)
	s.Equal(models.ArticleReadyForGeneration, again.Status)

	stats, err := s.store.CountsByStatus(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, stats.TotalArticles)
}

func (s *StoreSuite) TestListArticlesByStatus() {
	s.article("https://example.com/1", models.ArticleReadyForGeneration)
	s.article("https://example.com/2", models.ArticleFilteredOut)
	s.article("https://example.com/3", models.ArticleReadyForGeneration)

	ready, err := s.store.ListArticlesByStatus(s.ctx, models.ArticleReadyForGeneration, 0)
	s.Require().NoError(err)
	s.Len(ready, 2)

	limited, err := s.store.ListArticlesByStatus(s.ctx, models.ArticleReadyForGeneration, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)

	all, err := s.store.ListArticlesByStatus(s.ctx, AnyArticleStatus, 0)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.GetArticle(s.ctx, 999)
	s.True(errors.Is(err, models.ErrNotFound))
	_, err = s.store.GetDraft(s.ctx, 999)
	s.True(errors.Is(err, models.ErrNotFound))
	_, err = s.store.UpdateDraftStatus(s.ctx, 999, models.DraftPublished, models.DraftPatch{RemoteID: "1"})
	s.True(errors.Is(err, models.ErrNotFound))
	s.True(errors.Is(s.store.DeleteArticle(s.ctx, 999), models.ErrNotFound))
	s.True(errors.Is(s.store.DeleteDraft(s.ctx, 999), models.ErrNotFound))
}

func (s *StoreSuite) TestCreateDraftMarksArticleGenerated() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	d := s.draft(a.ID)
	s.NotZero(d.ID)
	s.Equal(models.DraftDraft, d.Status)

	got, err := s.store.GetArticle(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.ArticleGenerated, got.Status)

	stored, err := s.store.GetDraft(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal([]string{"sewage"}, stored.Tags)
}

func (s *StoreSuite) TestCreateDraftWithoutRegenerateConflicts() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	s.draft(a.ID)

	err := s.store.CreateDraft(s.ctx, &models.Draft{ArticleID: a.ID, Headline: "again"}, false)
	s.True(errors.Is(err, models.ErrConflict))

	drafts, err := s.store.ListDraftsByStatus(s.ctx, AnyDraftStatus, 0)
	s.Require().NoError(err)
	s.Len(drafts, 1)

	regen := &models.Draft{ArticleID: a.ID, Headline: "again"}
	s.Require().NoError(s.store.CreateDraft(s.ctx, regen, true))

	latest, err := s.store.LatestDraftForArticle(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(regen.ID, latest.ID)
}

func (s *StoreSuite) TestCreateDraftUnknownArticle() {
	err := s.store.CreateDraft(s.ctx, &models.Draft{ArticleID: 42, Headline: "x"}, false)
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *StoreSuite) TestPublishTransition() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	d := s.draft(a.ID)

	_, err := s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftPublished, models.DraftPatch{})
	s.True(errors.Is(err, models.ErrInvalidTransition))

	published, err := s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftPublished, models.DraftPatch{RemoteID: "101", RemoteURL: "https://blog/101"})
	s.Require().NoError(err)
	s.Equal(models.DraftPublished, published.Status)
	s.Equal("101", published.RemoteID)

	_, err = s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftPublished, models.DraftPatch{RemoteID: "102"})
	s.True(errors.Is(err, models.ErrConflict))

	stored, err := s.store.GetDraft(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("101", stored.RemoteID)
	s.NotNil(stored.PublishedAt)
}

func (s *StoreSuite) TestExportTransition() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	d := s.draft(a.ID)

	exported, err := s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftExported, models.DraftPatch{ExportPath: "generated_posts/a.html"})
	s.Require().NoError(err)
	s.Equal(models.DraftExported, exported.Status)

	published, err := s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftPublished, models.DraftPatch{RemoteID: "7"})
	s.Require().NoError(err)
	s.Equal(models.DraftPublished, published.Status)
	s.Equal("generated_posts/a.html", published.ExportPath)
}

func (s *StoreSuite) TestConcurrentPublishWritesOnce() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	d := s.draft(a.ID)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftPublished, models.DraftPatch{RemoteID: "1"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, succeeded)
}

func (s *StoreSuite) TestDeleteArticleCascadesDrafts() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	d := s.draft(a.ID)

	s.Require().NoError(s.store.DeleteArticle(s.ctx, a.ID))

	_, err := s.store.GetDraft(s.ctx, d.ID)
	s.True(errors.Is(err, models.ErrNotFound))

	again := &models.Article{SourceURL: "https://example.com/a", Title: "back", Status: models.ArticleNew}
	created, err := s.store.UpsertArticleByURL(s.ctx, again)
	s.Require().NoError(err)
	s.True(created)
}

func (s *StoreSuite) TestDeleteDraftKeepsArticle() {
	a := s.article("https://example.com/a", models.ArticleReadyForGeneration)
	d := s.draft(a.ID)

	s.Require().NoError(s.store.DeleteDraft(s.ctx, d.ID))
	got, err := s.store.GetArticle(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.ArticleGenerated, got.Status)
}

func (s *StoreSuite) TestCountsByStatus() {
	a1 := s.article("https://example.com/1", models.ArticleReadyForGeneration)
	s.article("https://example.com/2", models.ArticleReadyForGeneration)
	s.article("https://example.com/3", models.ArticleFilteredOut)
	d := s.draft(a1.ID)
	_, err := s.store.UpdateDraftStatus(s.ctx, d.ID, models.DraftPublished, models.DraftPatch{RemoteID: "5"})
	s.Require().NoError(err)

	stats, err := s.store.CountsByStatus(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, stats.TotalArticles)
	s.EqualValues(1, stats.Unprocessed)
	s.EqualValues(1, stats.FilteredOut)
	s.EqualValues(1, stats.TotalBlogs)
	s.EqualValues(1, stats.Published)
	s.EqualValues(0, stats.Drafts)
}

func (s *StoreSuite) TestRuns() {
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		run := &models.PipelineRun{
			ID:        uuid.NewString(),
			Trigger:   models.TriggerManual,
			Status:    models.RunSuccess,
			Found:     i,
			Errors:    []string{"feed down"},
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		s.Require().NoError(s.store.SaveRun(s.ctx, run))
	}

	runs, err := s.store.ListRuns(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Equal(2, runs[0].Found)
	s.Equal([]string{"feed down"}, runs[0].Errors)
}
