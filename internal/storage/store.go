package storage

import (
	"context"

	"github.com/bilgisen/wastewatch/internal/models"
)

// Store is the Item Store: the only shared mutable state of the pipeline.
// Every write is atomic per record; a status change and its payload land together.
type Store interface {
	// UpsertArticleByURL creates a by SourceURL. When the URL already exists
	// nothing is written, a is filled with the stored row and created is false.
	UpsertArticleByURL(ctx context.Context, a *models.Article) (created bool, err error)
	GetArticle(ctx context.Context, id uint) (*models.Article, error)
	ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error)
	// UpdateArticleContent replaces the extracted body text; status is untouched.
	UpdateArticleContent(ctx context.Context, id uint, content string) error
	// DeleteArticle removes the article and its drafts.
	DeleteArticle(ctx context.Context, id uint) error

	// CreateDraft inserts d and marks its article GENERATED in one transaction.
	// Without regenerate an already GENERATED article yields ErrConflict.
	CreateDraft(ctx context.Context, d *models.Draft, regenerate bool) error
	GetDraft(ctx context.Context, id uint) (*models.Draft, error)
	LatestDraftForArticle(ctx context.Context, articleID uint) (*models.Draft, error)
	ListDraftsByStatus(ctx context.Context, status models.DraftStatus, limit int) ([]models.Draft, error)
	UpdateDraftStatus(ctx context.Context, id uint, to models.DraftStatus, patch models.DraftPatch) (*models.Draft, error)
	DeleteDraft(ctx context.Context, id uint) error

	CountsByStatus(ctx context.Context) (*models.Stats, error)

	SaveRun(ctx context.Context, run *models.PipelineRun) error
	ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)

	Close() error
}

// AnyArticleStatus and AnyDraftStatus disable the status filter of list calls.
const (
	AnyArticleStatus models.ArticleStatus = ""
	AnyDraftStatus   models.DraftStatus   = ""
)
