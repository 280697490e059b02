package api

import (
	"context"
	"strconv"
	"time"

	"github.com/bilgisen/wastewatch/internal/ai"
	"github.com/bilgisen/wastewatch/internal/cache"
	"github.com/bilgisen/wastewatch/internal/export"
	"github.com/bilgisen/wastewatch/internal/feed"
	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/middleware"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/pipeline"
	"github.com/bilgisen/wastewatch/internal/publish"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

// Deps are the components the handlers drive.
type Deps struct {
	Store        storage.Store
	Seen         cache.SeenCache
	Processor    *feed.Processor
	Generator    *ai.Generator
	Publisher    *publish.Publisher
	Exporter     *export.Exporter
	Orchestrator *pipeline.Orchestrator
	Sources      []models.FeedSource
	// Interval is used by scheduler/start when the request names none.
	Interval time.Duration
}

type Handlers struct {
	Deps
	validate *middleware.Validator
	log      zerolog.Logger
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		Deps:     deps,
		validate: middleware.NewValidator(),
		log:      logger.For("api"),
	}
}

type generateBatchRequest struct {
	Limit  int    `json:"limit" validate:"min=0,max=100"`
	Prompt string `json:"prompt" validate:"max=8000"`
}

type generateOneRequest struct {
	Prompt     string `json:"prompt" validate:"max=8000"`
	Regenerate bool   `json:"regenerate"`
}

type publishRequest struct {
	Force bool `json:"force"`
}

type schedulerStartRequest struct {
	IntervalMinutes int `json:"interval_minutes" validate:"min=0,max=10080"`
}

type listQuery struct {
	Status string `query:"status"`
	Limit  int    `query:"limit" validate:"min=0,max=500"`
}

// HealthCheck handles GET /api/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":            true,
		"status":             "ok",
		"version":            version,
		"time":               time.Now().Format(time.RFC3339),
		"generation_service": h.Generator.ServiceAvailable(),
		"content_system":     h.Publisher.Configured(),
	})
}

// Scrape handles POST /api/scrape
func (h *Handlers) Scrape(c *fiber.Ctx) error {
	var res *feed.IngestResult
	err := h.Orchestrator.Exclusive(c.UserContext(), func(ctx context.Context) error {
		var err error
		res, err = h.Processor.Ingest(ctx, h.Sources)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}

// GenerateBatch handles POST /api/generate
func (h *Handlers) GenerateBatch(c *fiber.Ctx) error {
	req := generateBatchRequest{Limit: 5}
	if err := h.validate.BindBody(c, &req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = 5
	}

	var res *ai.BatchResult
	err := h.Orchestrator.Exclusive(c.UserContext(), func(ctx context.Context) error {
		var err error
		res, err = h.Generator.GeneratePending(ctx, req.Limit, ai.Options{Prompt: req.Prompt})
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"generated": res.Generated,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"items":     res.Items,
	})
}

// GenerateOne handles POST /api/generate/:articleId
func (h *Handlers) GenerateOne(c *fiber.Ctx) error {
	id, err := paramID(c, "articleId")
	if err != nil {
		return err
	}
	var req generateOneRequest
	if err := h.validate.BindBody(c, &req); err != nil {
		return err
	}

	res, err := h.Generator.GenerateArticle(c.UserContext(), id, ai.Options{Prompt: req.Prompt, Regenerate: req.Regenerate})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "post": res.Draft, "created": res.Created})
}

// Publish handles POST /api/publish/:blogId
func (h *Handlers) Publish(c *fiber.Ctx) error {
	id, err := paramID(c, "blogId")
	if err != nil {
		return err
	}
	var req publishRequest
	if err := h.validate.BindBody(c, &req); err != nil {
		return err
	}

	force := req.Force || c.QueryBool("force")

	res, err := h.Publisher.Publish(c.UserContext(), id, force)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"url":               res.URL,
		"simulated":         res.Simulated,
		"already_published": res.AlreadyPublished,
		"in_progress":       res.InProgress,
		"post":              res.Draft,
	})
}

// Export handles POST /api/export/:blogId
func (h *Handlers) Export(c *fiber.Ctx) error {
	id, err := paramID(c, "blogId")
	if err != nil {
		return err
	}
	res, err := h.Exporter.Export(c.UserContext(), id)
	if err != nil {
		return err
	}
	body := fiber.Map{"success": true, "filepath": res.FilePath, "post": res.Draft}
	if res.ObjectURL != "" {
		body["object_url"] = res.ObjectURL
	}
	return c.JSON(body)
}

// TestWordPress handles POST /api/wordpress/test
func (h *Handlers) TestWordPress(c *fiber.Ctx) error {
	msg, err := h.Publisher.TestConnection(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": msg})
}

// StartScheduler handles POST /api/scheduler/start
func (h *Handlers) StartScheduler(c *fiber.Ctx) error {
	var req schedulerStartRequest
	if err := h.validate.BindBody(c, &req); err != nil {
		return err
	}
	interval := h.Interval
	if req.IntervalMinutes > 0 {
		interval = time.Duration(req.IntervalMinutes) * time.Minute
	}
	if err := h.Orchestrator.Start(interval); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	st := h.Orchestrator.Status()
	return c.JSON(fiber.Map{"success": true, "message": "Scheduler started", "interval": st.Interval})
}

// StopScheduler handles POST /api/scheduler/stop
func (h *Handlers) StopScheduler(c *fiber.Ctx) error {
	h.Orchestrator.Stop()
	return c.JSON(fiber.Map{"success": true, "message": "Scheduler stopped"})
}

// SchedulerStatus handles GET /api/scheduler/status
func (h *Handlers) SchedulerStatus(c *fiber.Ctx) error {
	st := h.Orchestrator.Status()
	return c.JSON(fiber.Map{
		"success":          true,
		"running":          st.Running,
		"interval":         st.Interval,
		"interval_minutes": st.IntervalMinutes,
		"is_processing":    st.IsProcessing,
		"next_run":         st.NextRun,
		"last_run":         st.LastRun,
	})
}

// Stats handles GET /api/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	s, err := h.Store.CountsByStatus(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"total_articles": s.TotalArticles,
		"unprocessed":    s.Unprocessed,
		"filtered_out":   s.FilteredOut,
		"total_blogs":    s.TotalBlogs,
		"drafts":         s.Drafts,
		"published":      s.Published,
		"exported":       s.Exported,
	})
}

// ListArticles handles GET /api/articles
func (h *Handlers) ListArticles(c *fiber.Ctx) error {
	q := listQuery{Limit: 50}
	if err := h.validate.BindQuery(c, &q); err != nil {
		return err
	}
	status := models.ArticleStatus(q.Status)
	if status != storage.AnyArticleStatus && !status.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown article status "+q.Status)
	}
	articles, err := h.Store.ListArticlesByStatus(c.UserContext(), status, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "articles": articles, "count": len(articles)})
}

// GetArticle handles GET /api/article/:id
func (h *Handlers) GetArticle(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.Store.GetArticle(c.UserContext(), id)
	if err != nil {
		return err
	}
	body := fiber.Map{"success": true, "article": a}
	if d, err := h.Store.LatestDraftForArticle(c.UserContext(), id); err == nil {
		body["post"] = d
	}
	return c.JSON(body)
}

// DeleteArticle handles DELETE /api/article/:id/delete
func (h *Handlers) DeleteArticle(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	a, err := h.Store.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	if err := h.Store.DeleteArticle(ctx, id); err != nil {
		return err
	}
	// Let a later ingestion rediscover the URL.
	if err := h.Seen.Forget(ctx, a.SourceURL); err != nil {
		h.log.Warn().Err(err).Uint("article_id", id).Msg("Failed to forget deleted article url")
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListBlogs handles GET /api/blogs
func (h *Handlers) ListBlogs(c *fiber.Ctx) error {
	q := listQuery{Limit: 50}
	if err := h.validate.BindQuery(c, &q); err != nil {
		return err
	}
	status := models.DraftStatus(q.Status)
	if status != storage.AnyDraftStatus && !status.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown draft status "+q.Status)
	}
	drafts, err := h.Store.ListDraftsByStatus(c.UserContext(), status, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "posts": drafts, "count": len(drafts)})
}

// GetBlog handles GET /api/blog/:id
func (h *Handlers) GetBlog(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.Store.GetDraft(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "post": d})
}

// DeleteBlog handles DELETE /api/blog/:id/delete
func (h *Handlers) DeleteBlog(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Store.DeleteDraft(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// SeedDemo handles GET and POST /api/seed-demo
func (h *Handlers) SeedDemo(c *fiber.Ctx) error {
	n, err := h.Processor.SeedDemo(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "seeded": n})
}

// RunPipeline handles POST /api/pipeline/run
func (h *Handlers) RunPipeline(c *fiber.Ctx) error {
	summary, err := h.Orchestrator.RunOnce(c.UserContext(), models.TriggerManual)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "summary": summary})
}

// ListRuns handles GET /api/pipeline/runs
func (h *Handlers) ListRuns(c *fiber.Ctx) error {
	q := listQuery{Limit: 20}
	if err := h.validate.BindQuery(c, &q); err != nil {
		return err
	}
	runs, err := h.Store.ListRuns(c.UserContext(), q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "runs": runs})
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}
