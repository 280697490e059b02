package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
)

// MemoryStore keeps everything in maps behind one RWMutex.
type MemoryStore struct {
	mu sync.RWMutex

	articles map[uint]models.Article
	byURL    map[string]uint
	drafts   map[uint]models.Draft
	runs     map[string]models.PipelineRun

	nextArticleID uint
	nextDraftID   uint
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: make(map[uint]models.Article),
		byURL:    make(map[string]uint),
		drafts:   make(map[uint]models.Draft),
		runs:     make(map[string]models.PipelineRun),
		now:      time.Now,
	}
}

func (s *MemoryStore) UpsertArticleByURL(ctx context.Context, a *models.Article) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if a.SourceURL == "" {
		return false, fmt.Errorf("article has no source url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byURL[a.SourceURL]; ok {
		*a = cloneArticle(s.articles[id])
		return false, nil
	}

	s.nextArticleID++
	now := s.now()
	a.ID = s.nextArticleID
	if a.Status == "" {
		a.Status = models.ArticleNew
	}
	a.CreatedAt, a.UpdatedAt = now, now

	s.articles[a.ID] = cloneArticle(*a)
	s.byURL[a.SourceURL] = a.ID
	return true, nil
}

func (s *MemoryStore) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	out := cloneArticle(a)
	return &out, nil
}

// ListArticlesByStatus returns the newest articles first.
func (s *MemoryStore) ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Article, 0)
	for _, a := range s.articles {
		if status == AnyArticleStatus || a.Status == status {
			out = append(out, cloneArticle(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) UpdateArticleContent(ctx context.Context, id uint, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	a.Content = content
	a.UpdatedAt = s.now()
	s.articles[id] = a
	return nil
}

func (s *MemoryStore) DeleteArticle(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	for did, d := range s.drafts {
		if d.ArticleID == id {
			delete(s.drafts, did)
		}
	}
	delete(s.byURL, a.SourceURL)
	delete(s.articles, id)
	return nil
}

func (s *MemoryStore) CreateDraft(ctx context.Context, d *models.Draft, regenerate bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[d.ArticleID]
	if !ok {
		return fmt.Errorf("article %d: %w", d.ArticleID, models.ErrNotFound)
	}
	if a.Status == models.ArticleGenerated && !regenerate {
		return fmt.Errorf("article %d already generated: %w", a.ID, models.ErrConflict)
	}

	s.nextDraftID++
	now := s.now()
	d.ID = s.nextDraftID
	if d.Status == "" {
		d.Status = models.DraftDraft
	}
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = now
	}
	d.CreatedAt, d.UpdatedAt = now, now
	s.drafts[d.ID] = cloneDraft(*d)

	a.Status = models.ArticleGenerated
	a.UpdatedAt = now
	s.articles[a.ID] = a
	return nil
}

func (s *MemoryStore) GetDraft(ctx context.Context, id uint) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %d: %w", id, models.ErrNotFound)
	}
	out := cloneDraft(d)
	return &out, nil
}

func (s *MemoryStore) LatestDraftForArticle(ctx context.Context, articleID uint) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Draft
	for _, d := range s.drafts {
		if d.ArticleID != articleID {
			continue
		}
		if latest == nil || d.ID > latest.ID {
			c := cloneDraft(d)
			latest = &c
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("draft for article %d: %w", articleID, models.ErrNotFound)
	}
	return latest, nil
}

func (s *MemoryStore) ListDraftsByStatus(ctx context.Context, status models.DraftStatus, limit int) ([]models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Draft, 0)
	for _, d := range s.drafts {
		if status == AnyDraftStatus || d.Status == status {
			out = append(out, cloneDraft(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) UpdateDraftStatus(ctx context.Context, id uint, to models.DraftStatus, patch models.DraftPatch) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %d: %w", id, models.ErrNotFound)
	}
	if patch.At.IsZero() {
		patch.At = s.now()
	}
	if err := d.ApplyTransition(to, patch); err != nil {
		return nil, err
	}
	d.UpdatedAt = patch.At
	s.drafts[id] = d

	out := cloneDraft(d)
	return &out, nil
}

func (s *MemoryStore) DeleteDraft(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[id]; !ok {
		return fmt.Errorf("draft %d: %w", id, models.ErrNotFound)
	}
	delete(s.drafts, id)
	return nil
}

func (s *MemoryStore) CountsByStatus(ctx context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{
		TotalArticles: int64(len(s.articles)),
		TotalBlogs:    int64(len(s.drafts)),
	}
	for _, a := range s.articles {
		switch a.Status {
		case models.ArticleReadyForGeneration:
			stats.Unprocessed++
		case models.ArticleFilteredOut:
			stats.FilteredOut++
		}
	}
	for _, d := range s.drafts {
		switch d.Status {
		case models.DraftDraft:
			stats.Drafts++
		case models.DraftPublished:
			stats.Published++
		case models.DraftExported:
			stats.Exported++
		}
	}
	return stats, nil
}

func (s *MemoryStore) SaveRun(ctx context.Context, run *models.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("pipeline run has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *run
	r.Errors = append([]string(nil), run.Errors...)
	s.runs[run.ID] = r
	return nil
}

// ListRuns returns the most recent runs first.
func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PipelineRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneArticle(a models.Article) models.Article {
	a.MatchedTerms = append([]string(nil), a.MatchedTerms...)
	return a
}

func cloneDraft(d models.Draft) models.Draft {
	d.Tags = append([]string(nil), d.Tags...)
	return d
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
