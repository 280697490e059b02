package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore persists the Item Store in sqlite or postgres.
type GormStore struct {
	db *gorm.DB
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		// sqlite allows a single writer; one connection also keeps :memory: databases alive.
		sqlDB.SetMaxOpenConns(1)
	}

	return NewGormStore(db)
}

// NewGormStore wraps an existing connection and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Article{}, &models.Draft{}, &models.PipelineRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) UpsertArticleByURL(ctx context.Context, a *models.Article) (bool, error) {
	if a.SourceURL == "" {
		return false, fmt.Errorf("article has no source url")
	}
	if a.Status == "" {
		a.Status = models.ArticleNew
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_url"}},
			DoNothing: true,
		}).Create(a)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			created = true
			return nil
		}
		url := a.SourceURL
		*a = models.Article{}
		return tx.Where("source_url = ?", url).First(a).Error
	})
	if err != nil {
		return false, fmt.Errorf("upsert article: %w", err)
	}
	return created, nil
}

func (s *GormStore) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err, "article %d", id)
	}
	return &a, nil
}

func (s *GormStore) ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if status != AnyArticleStatus {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Article
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return out, nil
}

func (s *GormStore) UpdateArticleContent(ctx context.Context, id uint, content string) error {
	res := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return fmt.Errorf("update article content: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteArticle(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Article{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete article: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("article %d: %w", id, models.ErrNotFound)
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Draft{}).Error; err != nil {
			return fmt.Errorf("delete drafts of article %d: %w", id, err)
		}
		return nil
	})
}

func (s *GormStore) CreateDraft(ctx context.Context, d *models.Draft, regenerate bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Article
		if err := tx.First(&a, d.ArticleID).Error; err != nil {
			return notFound(err, "article %d", d.ArticleID)
		}
		if a.Status == models.ArticleGenerated && !regenerate {
			return fmt.Errorf("article %d already generated: %w", a.ID, models.ErrConflict)
		}

		if d.Status == "" {
			d.Status = models.DraftDraft
		}
		if d.GeneratedAt.IsZero() {
			d.GeneratedAt = time.Now()
		}
		if err := tx.Create(d).Error; err != nil {
			return fmt.Errorf("create draft: %w", err)
		}

		// Guard on the status we read so a concurrent generation loses cleanly.
		res := tx.Model(&models.Article{}).
			Where("id = ? AND status = ?", a.ID, a.Status).
			Update("status", models.ArticleGenerated)
		if res.Error != nil {
			return fmt.Errorf("mark article generated: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("article %d changed concurrently: %w", a.ID, models.ErrConflict)
		}
		return nil
	})
}

func (s *GormStore) GetDraft(ctx context.Context, id uint) (*models.Draft, error) {
	var d models.Draft
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFound(err, "draft %d", id)
	}
	return &d, nil
}

func (s *GormStore) LatestDraftForArticle(ctx context.Context, articleID uint) (*models.Draft, error) {
	var d models.Draft
	err := s.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("id DESC").
		First(&d).Error
	if err != nil {
		return nil, notFound(err, "draft for article %d", articleID)
	}
	return &d, nil
}

func (s *GormStore) ListDraftsByStatus(ctx context.Context, status models.DraftStatus, limit int) ([]models.Draft, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if status != AnyDraftStatus {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Draft
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return out, nil
}

func (s *GormStore) UpdateDraftStatus(ctx context.Context, id uint, to models.DraftStatus, patch models.DraftPatch) (*models.Draft, error) {
	var out models.Draft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, id).Error; err != nil {
			return notFound(err, "draft %d", id)
		}
		from := out.Status
		if err := out.ApplyTransition(to, patch); err != nil {
			return err
		}

		res := tx.Model(&models.Draft{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{
				"status":            out.Status,
				"remote_id":         out.RemoteID,
				"remote_url":        out.RemoteURL,
				"publish_simulated": out.PublishSimulated,
				"published_at":      out.PublishedAt,
				"export_path":       out.ExportPath,
				"exported_at":       out.ExportedAt,
				"updated_at":        time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("update draft %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("draft %d changed concurrently: %w", id, models.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) DeleteDraft(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Draft{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete draft: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("draft %d: %w", id, models.ErrNotFound)
	}
	return nil
}

type statusCount struct {
	Status string
	Count  int64
}

func (s *GormStore) CountsByStatus(ctx context.Context) (*models.Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &models.Stats{}

	var articleCounts []statusCount
	if err := db.Model(&models.Article{}).Select("status, count(*) as count").Group("status").Scan(&articleCounts).Error; err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}
	for _, c := range articleCounts {
		stats.TotalArticles += c.Count
		switch models.ArticleStatus(c.Status) {
		case models.ArticleReadyForGeneration:
			stats.Unprocessed = c.Count
		case models.ArticleFilteredOut:
			stats.FilteredOut = c.Count
		}
	}

	var draftCounts []statusCount
	if err := db.Model(&models.Draft{}).Select("status, count(*) as count").Group("status").Scan(&draftCounts).Error; err != nil {
		return nil, fmt.Errorf("count drafts: %w", err)
	}
	for _, c := range draftCounts {
		stats.TotalBlogs += c.Count
		switch models.DraftStatus(c.Status) {
		case models.DraftDraft:
			stats.Drafts = c.Count
		case models.DraftPublished:
			stats.Published = c.Count
		case models.DraftExported:
			stats.Exported = c.Count
		}
	}
	return stats, nil
}

func (s *GormStore) SaveRun(ctx context.Context, run *models.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("pipeline run has no id")
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("save pipeline run: %w", err)
	}
	return nil
}

func (s *GormStore) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.PipelineRun
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, models.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
