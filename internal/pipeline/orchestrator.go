// Package pipeline runs ingestion, generation and publication as one
// serialized run, on demand or on a recurring timer.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bilgisen/wastewatch/internal/ai"
	"github.com/bilgisen/wastewatch/internal/feed"
	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/publish"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Ingester interface {
	Ingest(ctx context.Context, sources []models.FeedSource) (*feed.IngestResult, error)
}

type Generator interface {
	GeneratePending(ctx context.Context, limit int, opts ai.Options) (*ai.BatchResult, error)
}

type Publisher interface {
	PublishMany(ctx context.Context, ids []uint) *publish.BatchResult
	Configured() bool
}

const (
	StageIngest   = "ingest"
	StageGenerate = "generate"
	StagePublish  = "publish"
	StageDone     = "done"
)

type Config struct {
	Sources      []models.FeedSource
	AutoGenerate bool
	AutoPublish  bool
	// MaxPerRun bounds the generation batch.
	MaxPerRun int
	// RunTimeout bounds scheduled runs. Zero disables.
	RunTimeout time.Duration
}

// Summary merges every stage result of one run.
type Summary struct {
	Run         *models.PipelineRun  `json:"run"`
	Ingestion   *feed.IngestResult   `json:"ingestion,omitempty"`
	Generation  *ai.BatchResult      `json:"generation,omitempty"`
	Publication *publish.BatchResult `json:"publication,omitempty"`
}

// Status is the scheduler view returned by the API.
type Status struct {
	Running         bool                `json:"running"`
	Interval        string              `json:"interval,omitempty"`
	IntervalMinutes int                 `json:"interval_minutes,omitempty"`
	IsProcessing    bool                `json:"is_processing"`
	NextRun         *time.Time          `json:"next_run,omitempty"`
	LastRun         *models.PipelineRun `json:"last_run,omitempty"`
}

// Orchestrator owns the scheduler state. The busy flag is shared by scheduled
// runs, manual runs and manual stage calls made through Exclusive.
type Orchestrator struct {
	store     storage.Store
	ingester  Ingester
	generator Generator
	publisher Publisher
	cfg       Config
	log       zerolog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	mu       sync.Mutex
	stop     chan struct{}
	interval time.Duration
	nextRun  time.Time
	lastRun  *models.PipelineRun
}

func New(store storage.Store, ingester Ingester, generator Generator, publisher Publisher, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		ingester:  ingester,
		generator: generator,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.For("pipeline"),
	}
}

// RunOnce executes one full run. It returns models.ErrRunInProgress without
// touching the store when another run or exclusive stage is executing.
func (o *Orchestrator) RunOnce(ctx context.Context, trigger models.RunTrigger) (*Summary, error) {
	if !o.busy.CompareAndSwap(false, true) {
		o.log.Info().Str("trigger", string(trigger)).Msg("Previous run still in progress, skipping")
		return nil, models.ErrRunInProgress
	}
	defer o.busy.Store(false)

	return o.execute(ctx, trigger)
}

// Exclusive runs fn under the same flag as RunOnce.
func (o *Orchestrator) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if !o.busy.CompareAndSwap(false, true) {
		return models.ErrRunInProgress
	}
	defer o.busy.Store(false)

	return fn(ctx)
}

// IsProcessing reports whether a run is executing.
func (o *Orchestrator) IsProcessing() bool {
	return o.busy.Load()
}

func (o *Orchestrator) execute(ctx context.Context, trigger models.RunTrigger) (*Summary, error) {
	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Stage:     StageIngest,
		StartedAt: time.Now(),
	}
	summary := &Summary{Run: run}
	log := o.log.With().Str("run_id", run.ID).Str("trigger", string(trigger)).Logger()
	log.Info().Msg("Pipeline run started")

	stageErr := o.stages(ctx, run, summary)

	finished := time.Now()
	run.FinishedAt = &finished
	switch {
	case stageErr != nil:
		run.Status = models.RunFailed
		run.Error = stageErr.Error()
	case run.Failed > 0 || len(run.Errors) > 0:
		run.Status = models.RunPartial
	default:
		run.Status = models.RunSuccess
		run.Stage = StageDone
	}

	if err := o.store.SaveRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to record pipeline run")
	}
	o.mu.Lock()
	o.lastRun = run
	o.mu.Unlock()

	ev := log.Info()
	if stageErr != nil {
		ev = log.Error().Err(stageErr)
	}
	ev.Str("status", string(run.Status)).
		Str("stage", run.Stage).
		Int("found", run.Found).
		Int("new", run.New).
		Int("generated", run.Generated).
		Int("published", run.Published).
		Int("failed", run.Failed).
		Dur("duration", finished.Sub(run.StartedAt)).
		Msg("Pipeline run finished")

	if stageErr != nil {
		return summary, fmt.Errorf("pipeline run %s failed at %s: %w", run.ID, run.Stage, stageErr)
	}
	return summary, nil
}

func (o *Orchestrator) stages(ctx context.Context, run *models.PipelineRun, summary *Summary) error {
	ing, err := o.ingester.Ingest(ctx, o.cfg.Sources)
	if err != nil {
		return err
	}
	summary.Ingestion = ing
	run.Found = ing.Found
	run.New = ing.New
	for _, f := range ing.Errors {
		run.Errors = append(run.Errors, fmt.Sprintf("%s: %s", f.Source, f.Error))
	}

	if !o.cfg.AutoGenerate {
		return nil
	}
	run.Stage = StageGenerate
	gen, err := o.generator.GeneratePending(ctx, o.cfg.MaxPerRun, ai.Options{})
	if err != nil {
		return err
	}
	summary.Generation = gen
	run.Generated = gen.Generated
	run.Failed += gen.Failed
	for _, it := range gen.Items {
		if it.Error != "" {
			run.Errors = append(run.Errors, fmt.Sprintf("article %d: %s", it.ArticleID, it.Error))
		}
	}

	ids := gen.DraftIDs()
	if !o.cfg.AutoPublish || len(ids) == 0 {
		return nil
	}
	if !o.publisher.Configured() {
		o.log.Debug().Msg("Auto-publish skipped, content system not configured")
		return nil
	}
	run.Stage = StagePublish
	pub := o.publisher.PublishMany(ctx, ids)
	summary.Publication = pub
	run.Published = pub.Published
	run.Failed += pub.Failed
	for _, it := range pub.Items {
		if it.Error != "" {
			run.Errors = append(run.Errors, fmt.Sprintf("draft %d: %s", it.DraftID, it.Error))
		}
	}
	return nil
}
