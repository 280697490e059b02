package api

import (
	"github.com/bilgisen/wastewatch/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp builds the fiber app with the shared error handler.
func NewApp(h *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "WasteWatch",
		ErrorHandler: middleware.ErrorHandler,
	})
	SetupRoutes(app, h)
	return app
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers) {
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api")

	api.Get("/health", h.HealthCheck)
	api.Get("/stats", h.Stats)

	// Stages
	api.Post("/scrape", h.Scrape)
	api.Post("/generate", h.GenerateBatch)
	api.Post("/generate/:articleId", h.GenerateOne)
	api.Post("/publish/:blogId", h.Publish)
	api.Post("/export/:blogId", h.Export)
	api.Post("/wordpress/test", h.TestWordPress)
	api.Get("/seed-demo", h.SeedDemo)
	api.Post("/seed-demo", h.SeedDemo)

	// Articles and drafts
	api.Get("/articles", h.ListArticles)
	api.Get("/article/:id", h.GetArticle)
	api.Delete("/article/:id/delete", h.DeleteArticle)
	api.Get("/blogs", h.ListBlogs)
	api.Get("/blog/:id", h.GetBlog)
	api.Delete("/blog/:id/delete", h.DeleteBlog)

	// Scheduler
	sched := api.Group("/scheduler")
	sched.Post("/start", h.StartScheduler)
	sched.Post("/stop", h.StopScheduler)
	sched.Get("/status", h.SchedulerStatus)

	api.Post("/pipeline/run", h.RunPipeline)
	api.Get("/pipeline/runs", h.ListRuns)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Endpoint not found")
	})
}
