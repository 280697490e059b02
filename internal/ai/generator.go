package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/rs/zerolog"
)

const notConfiguredReason = "generation service not configured"

// Outcome values reported per article.
const (
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Options for a generation request.
type Options struct {
	// Prompt overrides DefaultBlogPrompt.
	Prompt string
	// Regenerate creates a new draft for an already generated article.
	Regenerate bool
}

// ItemOutcome is the result for one article of a batch.
type ItemOutcome struct {
	ArticleID uint   `json:"article_id"`
	DraftID   uint   `json:"draft_id,omitempty"`
	Status    string `json:"status"`
	Simulated bool   `json:"simulated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult reports a pending-set generation.
type BatchResult struct {
	Generated int           `json:"generated"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Items     []ItemOutcome `json:"items"`
}

// DraftIDs lists the drafts created by the batch.
func (r *BatchResult) DraftIDs() []uint {
	var ids []uint
	for _, it := range r.Items {
		if it.Status == OutcomeGenerated {
			ids = append(ids, it.DraftID)
		}
	}
	return ids
}

// SingleResult reports a one-article generation. Created is false for a no-op
// on an already generated article; Draft is then its latest draft, if any.
type SingleResult struct {
	Draft   *models.Draft `json:"post"`
	Created bool          `json:"created"`
}

// Generator is the generation stage. A nil client means the generation
// service is unavailable and every draft comes from the offline template.
type Generator struct {
	store    storage.Store
	client   Completer
	fallback bool
	post     *PostProcessor
	timeout  time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	inflight map[uint]struct{}
}

type GeneratorConfig struct {
	// Fallback switches to the offline template when the client fails.
	Fallback bool
	// Timeout bounds one generation call. Zero leaves it to the client.
	Timeout time.Duration
}

func NewGenerator(store storage.Store, client Completer, cfg GeneratorConfig) *Generator {
	return &Generator{
		store:    store,
		client:   client,
		fallback: cfg.Fallback,
		post:     NewPostProcessor(),
		timeout:  cfg.Timeout,
		log:      logger.For("generate"),
		inflight: make(map[uint]struct{}),
	}
}

// ServiceAvailable reports whether a real generation backend is wired.
func (g *Generator) ServiceAvailable() bool {
	return g.client != nil
}

// GeneratePending drafts up to limit READY_FOR_GENERATION articles. One
// article failing never stops the batch; only a store read failure does.
func (g *Generator) GeneratePending(ctx context.Context, limit int, opts Options) (*BatchResult, error) {
	articles, err := g.store.ListArticlesByStatus(ctx, models.ArticleReadyForGeneration, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending articles: %w", err)
	}

	g.log.Info().Int("pending", len(articles)).Int("limit", limit).Msg("Starting generation batch")
	result := &BatchResult{Items: make([]ItemOutcome, 0, len(articles))}
	opts.Regenerate = false

	for i := range articles {
		if err := ctx.Err(); err != nil {
			g.log.Warn().Int("remaining", len(articles)-i).Msg("Generation batch cancelled")
			break
		}
		a := &articles[i]
		outcome := ItemOutcome{ArticleID: a.ID}

		draft, err := g.generate(ctx, a, opts)
		switch {
		case errors.Is(err, models.ErrConflict):
			outcome.Status = OutcomeSkipped
			result.Skipped++
		case err != nil:
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			result.Failed++
			g.log.Warn().Err(err).Uint("article_id", a.ID).Msg("Generation failed")
		default:
			outcome.Status = OutcomeGenerated
			outcome.DraftID = draft.ID
			outcome.Simulated = draft.Simulated
			result.Generated++
		}
		result.Items = append(result.Items, outcome)
	}

	g.log.Info().
		Int("generated", result.Generated).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Finished generation batch")
	return result, nil
}

// GenerateArticle drafts one article. FILTERED_OUT articles may be drafted on
// explicit request; a GENERATED article is a no-op unless opts.Regenerate.
func (g *Generator) GenerateArticle(ctx context.Context, id uint, opts Options) (*SingleResult, error) {
	a, err := g.store.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.Status == models.ArticleGenerated && !opts.Regenerate {
		return g.existing(ctx, id)
	}

	draft, err := g.generate(ctx, a, opts)
	if errors.Is(err, models.ErrConflict) {
		return g.existing(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return &SingleResult{Draft: draft, Created: true}, nil
}

func (g *Generator) existing(ctx context.Context, articleID uint) (*SingleResult, error) {
	d, err := g.store.LatestDraftForArticle(ctx, articleID)
	if errors.Is(err, models.ErrNotFound) {
		return &SingleResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SingleResult{Draft: d}, nil
}

func (g *Generator) acquire(id uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[id]; busy {
		return false
	}
	g.inflight[id] = struct{}{}
	return true
}

func (g *Generator) release(id uint) {
	g.mu.Lock()
	delete(g.inflight, id)
	g.mu.Unlock()
}

// generate produces and stores a draft. ErrConflict means another request
// drafted the article first.
func (g *Generator) generate(ctx context.Context, a *models.Article, opts Options) (*models.Draft, error) {
	if !g.acquire(a.ID) {
		return nil, fmt.Errorf("article %d is being generated: %w", a.ID, models.ErrConflict)
	}
	defer g.release(a.ID)

	prompt := RenderPrompt(opts.Prompt, a)
	draft, err := g.compose(ctx, a, prompt)
	if err != nil {
		return nil, err
	}

	if err := g.store.CreateDraft(ctx, draft, opts.Regenerate); err != nil {
		return nil, fmt.Errorf("save draft for article %d: %w", a.ID, err)
	}

	g.log.Info().
		Uint("article_id", a.ID).
		Uint("draft_id", draft.ID).
		Str("provider", draft.Provider).
		Bool("simulated", draft.Simulated).
		Msg("Draft created")
	return draft, nil
}

func (g *Generator) compose(ctx context.Context, a *models.Article, prompt string) (*models.Draft, error) {
	if g.client == nil {
		return g.offline(a, prompt, notConfiguredReason), nil
	}

	post, err := g.callService(ctx, a, prompt)
	if err == nil {
		return newDraft(a, post, prompt, g.client.Name(), false, ""), nil
	}

	genErr := &models.GenerationError{ArticleID: a.ID, Err: err}
	if !g.fallback {
		return nil, genErr
	}
	g.log.Warn().Err(err).Uint("article_id", a.ID).Msg("Generation service failed, using offline template")
	return g.offline(a, prompt, err.Error()), nil
}

func (g *Generator) callService(ctx context.Context, a *models.Article, prompt string) (*Post, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.client.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	post, err := g.post.Parse(text, a)
	if err != nil {
		return nil, fmt.Errorf("unusable response: %w", err)
	}
	return post, nil
}

func (g *Generator) offline(a *models.Article, prompt, reason string) *models.Draft {
	return newDraft(a, OfflinePost(a), prompt, models.OfflineProvider, true, reason)
}

func newDraft(a *models.Article, p *Post, prompt, provider string, simulated bool, reason string) *models.Draft {
	return &models.Draft{
		ArticleID:           a.ID,
		Headline:            p.Headline,
		MetaDescription:     p.MetaDescription,
		Body:                p.Body,
		Tags:                p.Tags,
		FeaturedImagePrompt: p.FeaturedImagePrompt,
		PromptUsed:          prompt,
		Provider:            provider,
		Simulated:           simulated,
		FallbackReason:      reason,
		Status:              models.DraftDraft,
		GeneratedAt:         time.Now(),
	}
}
